// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

// nginxSiteConfig is the origin site CloudFront forwards to. The first line
// carries a checksum of the rendered file so the probe can tell whether
// the installed copy is current.
const nginxSiteConfig = `# managed by lsctl {{.Checksum}}
log_format cloudfront '$remote_addr - $remote_user [$time_local] '
                      '"$request" $status $body_bytes_sent '
                      '"$http_referer" "$http_user_agent" "$http_x_amz_cf_id"';

server {
	listen 80 default_server;
	listen [::]:80 default_server;
	server_name {{.ServerName}} _;

	access_log /var/log/nginx/{{.ClusterName}}.access.log cloudfront;

	root /var/www/html;
	index index.html index.nginx-debian.html;

	location = /healthz {
		access_log off;
		default_type text/plain;
		return 200 'ok';
	}

	location / {
		try_files $uri $uri/ =404;
	}
}
`
