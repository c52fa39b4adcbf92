// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"text/template"

	"github.com/mattermost/logstack-deployer/deployment"
	"github.com/mattermost/logstack-deployer/deployment/provision"
)

const (
	nginxSitePath    = "/etc/nginx/sites-available/logstack"
	nginxSiteEnabled = "/etc/nginx/sites-enabled/logstack"
)

func nginxStep() provision.Step {
	return provision.Step{
		Name:      "nginx",
		Probe:     "nginx -v",
		Satisfied: provision.ExitZeroWithMarker("nginx version:"),
		Apply: []string{
			"sudo apt-get update",
			"sudo apt-get install -y nginx",
			"sudo systemctl enable nginx",
			"sudo systemctl start nginx",
		},
	}
}

// renderSiteConfig returns the NGINX site and the checksum stamped on it.
func renderSiteConfig(cfg *deployment.Config, serverName string) (string, string, error) {
	tmpl, err := template.New("site").Parse(nginxSiteConfig)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := map[string]string{
		"ServerName":  serverName,
		"ClusterName": cfg.ClusterName,
	}

	// The checksum covers the template inputs, so it's computed before
	// being stamped on the first line.
	var unstamped bytes.Buffer
	data["Checksum"] = ""
	if err := tmpl.Execute(&unstamped, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	sum := sha256.Sum256(unstamped.Bytes())
	checksum := hex.EncodeToString(sum[:8])

	var buf bytes.Buffer
	data["Checksum"] = checksum
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), checksum, nil
}

func nginxSiteStep(cfg *deployment.Config, serverName string) (provision.Step, error) {
	site, checksum, err := renderSiteConfig(cfg, serverName)
	if err != nil {
		return provision.Step{}, err
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(site))

	return provision.Step{
		Name:  "nginx-site",
		Probe: fmt.Sprintf("grep -q 'managed by lsctl %s' %s && test -L %s", checksum, nginxSitePath, nginxSiteEnabled),
		Apply: []string{
			fmt.Sprintf("echo %s | base64 -d | sudo tee %s > /dev/null", encoded, nginxSitePath),
			fmt.Sprintf("sudo ln -sf %s %s", nginxSitePath, nginxSiteEnabled),
			"sudo rm -f /etc/nginx/sites-enabled/default",
			"sudo nginx -t",
			"sudo systemctl reload nginx",
		},
	}, nil
}

func installScriptArtifact(cfg *deployment.Config) provision.Artifact {
	return provision.Artifact{
		LocalPath:  cfg.OpenSearchSettings.InstallScriptPath,
		RemotePath: deployment.RemoteInstallScriptPath,
	}
}

func installCommand(cfg *deployment.Config, component string) string {
	return fmt.Sprintf("sudo OPENSEARCH_VERSION=%s OPENSEARCH_PORT=%d DASHBOARDS_PORT=%d bash %s %s",
		cfg.OpenSearchSettings.Version,
		cfg.OpenSearchSettings.Port,
		cfg.OpenSearchSettings.DashboardsPort,
		deployment.RemoteInstallScriptPath,
		component,
	)
}

func openSearchStep(cfg *deployment.Config) provision.Step {
	return provision.Step{
		Name:      "opensearch",
		Probe:     "systemctl is-active opensearch",
		Satisfied: provision.ExitZero(),
		Artifacts: []provision.Artifact{installScriptArtifact(cfg)},
		Apply:     []string{installCommand(cfg, "opensearch")},
	}
}

func dashboardsStep(cfg *deployment.Config) provision.Step {
	return provision.Step{
		Name:      "opensearch-dashboards",
		Probe:     "systemctl is-active opensearch-dashboards",
		Satisfied: provision.ExitZero(),
		Artifacts: []provision.Artifact{installScriptArtifact(cfg)},
		Apply:     []string{installCommand(cfg, "dashboards")},
		Optional:  true,
	}
}

// stackSteps returns the ordered steps setting up the log host.
func stackSteps(cfg *deployment.Config, serverName string) ([]provision.Step, error) {
	site, err := nginxSiteStep(cfg, serverName)
	if err != nil {
		return nil, err
	}

	steps := []provision.Step{
		nginxStep(),
		site,
		openSearchStep(cfg),
	}
	if cfg.OpenSearchSettings.InstallDashboards {
		steps = append(steps, dashboardsStep(cfg))
	}
	return steps, nil
}
