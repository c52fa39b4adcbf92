// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package deployment

const (
	// DefaultAMI is the Ubuntu image used when creating the log host.
	DefaultAMI = "ami-09d56f8956ab235b3"

	// RoleLogHost labels the instance running NGINX and OpenSearch.
	RoleLogHost = "loghost"

	// RemoteInstallScriptPath is where the OpenSearch install script is uploaded.
	RemoteInstallScriptPath = "/tmp/install_opensearch.sh"

	// CloudFrontLogPrefix is the key prefix CloudFront writes access logs under.
	CloudFrontLogPrefix = "cloudfront/"

	// EnvVarConfigPath overrides the default config file location.
	EnvVarConfigPath = "LS_DEPLOYER_CONFIG"
)
