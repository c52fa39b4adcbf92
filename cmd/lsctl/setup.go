// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattermost/logstack-deployer/defaults"
	"github.com/mattermost/logstack-deployer/deployment"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func RunSetupCmdF(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	cfg, err := runSetup(newPrompter(os.Stdin, cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	if err := writeToFile(output, cfg); err != nil {
		return fmt.Errorf("failed to write deployer config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Configuration written to %s", output))
	fmt.Fprintf(cmd.OutOrStdout(), "Run %q to deploy the stack.\n", "lsctl deployment create -c "+output)
	return nil
}

// runSetup asks for the settings of a deployment and returns the resulting
// validated config.
func runSetup(p *prompter) (*deployment.Config, error) {
	var cfg deployment.Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}

	var err error
	if cfg.AWSRegion, err = p.ask("AWS region", cfg.AWSRegion, validWith(func(s string) any {
		return &struct {
			AWSRegion string `validate:"awsregion"`
		}{s}
	})); err != nil {
		return nil, err
	}

	if cfg.AWSProfile, err = p.ask("AWS profile, empty for the default credentials", "", nil); err != nil {
		return nil, err
	}

	if cfg.SSHKeyPath, err = p.ask("Path to the SSH private key, empty to use ssh-agent", "", func(s string) error {
		if s == "" {
			return nil
		}
		if _, err := os.Stat(deployment.ExpandHome(s)); err != nil {
			return fmt.Errorf("cannot read %s", s)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	cfg.SSHKeyPath = deployment.ExpandHome(cfg.SSHKeyPath)

	reuseInstance, err := p.confirm("Reuse an existing EC2 instance?", false)
	if err != nil {
		return nil, err
	}
	if reuseInstance {
		if cfg.ExistingInstanceID, err = p.ask("Instance ID", "", all(notEmpty, validWith(func(s string) any {
			return &struct {
				InstanceID string `validate:"instanceid"`
			}{s}
		}))); err != nil {
			return nil, err
		}
	} else {
		if cfg.KeyName, err = p.ask("EC2 key pair name", "", notEmpty); err != nil {
			return nil, err
		}
		if cfg.InstanceType, err = p.ask("Instance type", cfg.InstanceType, notEmpty); err != nil {
			return nil, err
		}
	}

	reuseDistribution, err := p.confirm("Reuse an existing CloudFront distribution?", false)
	if err != nil {
		return nil, err
	}
	if reuseDistribution {
		fmt.Fprintln(p.out, color.YellowString("The logging settings of the distribution are left unchanged."))
		if cfg.ExistingDistributionID, err = p.ask("Distribution ID", "", all(notEmpty, validWith(func(s string) any {
			return &struct {
				DistributionID string `validate:"distributionid"`
			}{s}
		}))); err != nil {
			return nil, err
		}
	}

	if cfg.LogBucketSettings.UseExisting, err = p.confirm("Reuse an existing S3 bucket for the access logs?", false); err != nil {
		return nil, err
	}
	bucketDefault := ""
	if !cfg.LogBucketSettings.UseExisting {
		bucketDefault = cfg.ClusterName + "-cloudfront-logs"
	}
	if cfg.LogBucketSettings.Name, err = p.ask("Bucket name", bucketDefault, validWith(func(s string) any {
		return &struct {
			BucketName string `validate:"bucket"`
		}{s}
	})); err != nil {
		return nil, err
	}

	if err := defaults.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func notEmpty(s string) error {
	if s == "" {
		return errors.New("a value is required")
	}
	return nil
}

// all runs every check in order, stopping at the first failure.
func all(checks ...func(string) error) func(string) error {
	return func(s string) error {
		for _, check := range checks {
			if err := check(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// validWith checks an answer through the validation tags of the struct
// returned by wrap.
func validWith(wrap func(string) any) func(string) error {
	return func(s string) error {
		return defaults.Validate(wrap(s))
	}
}

// writeToFile writes cfg to filename, encoded according to its extension.
func writeToFile(filename string, cfg any) error {
	data, err := marshalConfig(filepath.Ext(filename), cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	return nil
}

func marshalConfig(ext string, cfg any) ([]byte, error) {
	var data []byte
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported file format: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
