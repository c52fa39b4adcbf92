// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package deployment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattermost/logstack-deployer/defaults"
	"github.com/mattermost/logstack-deployer/deployment/provision"
	"github.com/mattermost/logstack-deployer/logger"
)

// Config contains the necessary data to deploy the log stack: an EC2
// instance running NGINX and OpenSearch, an S3 bucket receiving the
// CloudFront access logs and the CloudFront distribution itself.
type Config struct {
	// AWSProfile is the name of the AWS profile to use for all AWS commands.
	// An empty value means the default credential chain.
	AWSProfile string `default:""`
	// AWSRegion is the region used to deploy all resources.
	AWSRegion string `default:"us-east-1" validate:"awsregion"`
	// AWSAccessKeyID and AWSSecretAccessKey optionally override the profile.
	AWSAccessKeyID     string `default:""`
	AWSSecretAccessKey string `default:""`
	// AWSAMI is the AMI used when a new instance is created.
	AWSAMI string `default:"ami-09d56f8956ab235b3" validate:"notempty"`
	// ClusterName prefixes the names and tags of the created resources.
	ClusterName string `default:"logstack" validate:"notempty"`
	// InstanceType is the type of the EC2 instance hosting the stack.
	InstanceType string `default:"t3.medium" validate:"notempty"`
	// KeyName is the name of the EC2 key pair installed on a new instance.
	KeyName string `default:""`
	// SSHKeyPath is the private key matching KeyName. When empty, the
	// local ssh-agent is used.
	SSHKeyPath string `default:"" validate:"file"`
	// SSHUsername is the user to log in as.
	SSHUsername string `default:"ubuntu" validate:"notempty"`
	// ExistingInstanceID reuses an instance instead of creating one.
	ExistingInstanceID string `default:"" validate:"instanceid"`
	// ExistingDistributionID reuses a CloudFront distribution instead of
	// creating one. Its logging settings are left as they are.
	ExistingDistributionID string `default:"" validate:"distributionid"`
	// LogBucketSettings configures the bucket receiving CloudFront logs.
	LogBucketSettings LogBucketSettings
	// ProvisionSettings controls how the instance is provisioned over SSH.
	ProvisionSettings ProvisionSettings
	// OpenSearchSettings configures the OpenSearch stack on the instance.
	OpenSearchSettings OpenSearchSettings
	LogSettings        logger.Settings
	// Directory under which the .terraform directory and state files are managed.
	// It will be created if it does not exist
	TerraformStateDir string `default:"/var/lib/logstack-deployer" validate:"notempty"`
}

// LogBucketSettings contains the settings of the S3 bucket receiving the
// CloudFront access logs.
type LogBucketSettings struct {
	// Name of the bucket.
	Name string `default:"" validate:"bucket"`
	// UseExisting skips the bucket creation. The bucket must already exist.
	UseExisting bool `default:"false"`
	// EnableLogDeliveryACL grants the log-delivery-write ACL on creation.
	EnableLogDeliveryACL bool `default:"true"`
	// Prefix is the key prefix for the log objects.
	Prefix string `default:"cloudfront/"`
}

// ProvisionSettings contains the retry and timeout policy used when
// provisioning the instance.
type ProvisionSettings struct {
	// MaxConnectionAttempts is the number of SSH connection attempts.
	MaxConnectionAttempts int `default:"10" validate:"range:[1,)"`
	// InterAttemptDelaySeconds is the pause between connection attempts.
	InterAttemptDelaySeconds int `default:"10" validate:"range:[0,)"`
	// DialTimeoutSeconds bounds each connection attempt.
	DialTimeoutSeconds int `default:"30" validate:"range:[1,)"`
	// CommandTimeoutSeconds bounds each remote command. Zero means no limit.
	CommandTimeoutSeconds int `default:"1800" validate:"range:[0,)"`
}

// OpenSearchSettings contains the settings of the OpenSearch installation.
type OpenSearchSettings struct {
	// Version of OpenSearch to install.
	Version string `default:"2.11.1" validate:"notempty"`
	// InstallScriptPath is the local script uploaded to the instance and
	// run to install OpenSearch.
	InstallScriptPath string `default:"./scripts/install_opensearch.sh" validate:"notempty"`
	// InstallDashboards also installs OpenSearch Dashboards.
	InstallDashboards bool `default:"true"`
	// Port OpenSearch listens on, on the instance loopback.
	Port int `default:"9200" validate:"range:[1,65535]"`
	// DashboardsPort is the public port of OpenSearch Dashboards.
	DashboardsPort int `default:"5601" validate:"range:[1,65535]"`
	// ConfigureIndexTemplate creates the index template for CloudFront logs.
	ConfigureIndexTemplate bool `default:"true"`
	// HealthTimeoutSeconds bounds the wait for the cluster to become healthy.
	HealthTimeoutSeconds int `default:"300" validate:"range:[0,)"`
}

// IsValid reports whether a given deployment config is valid or not.
func (c *Config) IsValid() error {
	if c.ExistingInstanceID == "" && c.KeyName == "" {
		return errors.New("KeyName must be set when a new instance is created")
	}

	if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		return errors.New("AWSAccessKeyID and AWSSecretAccessKey must be set together")
	}

	if c.LogBucketSettings.Prefix != "" && !strings.HasSuffix(c.LogBucketSettings.Prefix, "/") {
		return fmt.Errorf("LogBucketSettings.Prefix should end with a slash: %q", c.LogBucketSettings.Prefix)
	}

	if c.OpenSearchSettings.Port == c.OpenSearchSettings.DashboardsPort {
		return fmt.Errorf("OpenSearch and its dashboards can't share port %d", c.OpenSearchSettings.Port)
	}

	return nil
}

// ProvisionConfig returns the provisioning policy described by the settings.
func (c *Config) ProvisionConfig() provision.Config {
	return provision.Config{
		MaxAttempts:       c.ProvisionSettings.MaxConnectionAttempts,
		InterAttemptDelay: time.Duration(c.ProvisionSettings.InterAttemptDelaySeconds) * time.Second,
		Username:          c.SSHUsername,
		CommandTimeout:    time.Duration(c.ProvisionSettings.CommandTimeoutSeconds) * time.Second,
	}
}

// DialTimeout returns the timeout of a single connection attempt.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.ProvisionSettings.DialTimeoutSeconds) * time.Second
}

// Target returns the provisioning target for the given host.
func (c *Config) Target(host string) provision.Target {
	return provision.NewTarget(host, c.SSHKeyPath, RoleLogHost)
}

// ReadConfig reads the configuration file from the given string. If the string
// is empty, it will return a config with default values.
func ReadConfig(configFilePath string) (*Config, error) {
	var cfg Config

	if configFilePath == "" {
		configFilePath = os.Getenv(EnvVarConfigPath)
	}

	if err := defaults.ReadFrom(configFilePath, "./config/deployer.json", &cfg); err != nil {
		return nil, err
	}

	cfg.SSHKeyPath = ExpandHome(cfg.SSHKeyPath)

	return &cfg, nil
}

// ExpandHome replaces a leading ~ in path with the home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
