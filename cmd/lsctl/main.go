// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattermost/logstack-deployer/defaults"
	"github.com/mattermost/logstack-deployer/deployment"
	"github.com/mattermost/logstack-deployer/deployment/terraform"
	"github.com/mattermost/logstack-deployer/deployment/terraform/ssh"
	"github.com/mattermost/logstack-deployer/logger"
	"github.com/mattermost/logstack-deployer/version"

	"github.com/spf13/cobra"
)

func RunCreateCmdF(cmd *cobra.Command, args []string) error {
	config, err := getConfig(cmd)
	if err != nil {
		return err
	}

	t, err := terraform.NewFromConfig(cmd.Context(), config)
	if err != nil {
		return fmt.Errorf("failed to create terraform engine: %w", err)
	}

	return t.Create(cmd.Context())
}

func RunDestroyCmdF(cmd *cobra.Command, args []string) error {
	config, err := getConfig(cmd)
	if err != nil {
		return err
	}

	confirmed, err := askForConfirmation("This will destroy the log host and the CloudFront distribution created by lsctl. Do you want to continue?")
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	return terraform.New(config, nil, nil).Destroy(cmd.Context())
}

func RunInfoCmdF(cmd *cobra.Command, args []string) error {
	config, err := getConfig(cmd)
	if err != nil {
		return err
	}

	return terraform.New(config, nil, nil).Info(cmd.Context())
}

func RunSyncCmdF(cmd *cobra.Command, args []string) error {
	config, err := getConfig(cmd)
	if err != nil {
		return err
	}

	return terraform.New(config, nil, nil).Sync(cmd.Context())
}

func RunSSHCmdF(cmd *cobra.Command, args []string) error {
	config, err := getConfig(cmd)
	if err != nil {
		return err
	}

	return terraform.New(config, nil, nil).OpenSSH(cmd.Context(), args...)
}

func RunVersionCmdF(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo().String())
}

func getConfig(cmd *cobra.Command) (*deployment.Config, error) {
	configFilePath, _ := cmd.Flags().GetString("config")
	cfg, err := deployment.ReadConfig(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := defaults.Validate(cfg); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	logger.Init(&cfg.LogSettings)
	return cfg, nil
}

func newDialer(cfg *deployment.Config) *ssh.Dialer {
	return ssh.NewDialer(ssh.DialerConfig{Timeout: cfg.DialTimeout()})
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "lsctl",
		SilenceUsage: true,
		Short:        "Deploy and manage a CloudFront log stack on AWS",
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file to use")

	deploymentCmd := &cobra.Command{
		Use:   "deployment",
		Short: "Manage the log stack deployment",
	}

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a deployer configuration interactively",
		RunE:  RunSetupCmdF,
	}
	setupCmd.Flags().StringP("output", "o", "./config/deployer.json", "path of the configuration file to write. The format follows the extension (.json, .yaml, .toml)")

	deploymentCommands := []*cobra.Command{
		{
			Use:   "create",
			Short: "Deploy the log stack",
			Long:  "Create the log bucket, the EC2 instance and the CloudFront distribution, then install NGINX and OpenSearch on the instance. Running it again only applies what is missing.",
			RunE:  RunCreateCmdF,
		},
		{
			Use:   "destroy",
			Short: "Destroy the resources created by the deployment",
			RunE:  RunDestroyCmdF,
		},
		{
			Use:   "info",
			Short: "Display information about the current deployment",
			RunE:  RunInfoCmdF,
		},
		{
			Use:   "sync",
			Short: "Refresh the deployment state from AWS",
			RunE:  RunSyncCmdF,
		},
		{
			Use:     "ssh [command]",
			Short:   "Open an ssh session to the log host",
			Example: "lsctl deployment ssh\nlsctl deployment ssh -- sudo systemctl status opensearch",
			RunE:    RunSSHCmdF,
		},
		setupCmd,
	}
	deploymentCmd.AddCommand(deploymentCommands...)
	rootCmd.AddCommand(deploymentCmd)

	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Install the log stack on a host over SSH",
		Long:  "Run the provisioning steps against a host. Steps already satisfied on the host are skipped.",
		RunE:  RunProvisionCmdF,
	}
	provisionCmd.Flags().String("host", "", "host to provision. Defaults to the deployed log host")
	provisionCmd.Flags().StringP("key", "k", "", "private key to authenticate with. Overrides SSHKeyPath")
	provisionCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(provisionCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   RunVersionCmdF,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
