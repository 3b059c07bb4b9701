package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/O-tero/xc-cert-manager/internal/config"
	"github.com/O-tero/xc-cert-manager/internal/issuer"
	"github.com/O-tero/xc-cert-manager/internal/logging"
	"github.com/O-tero/xc-cert-manager/internal/renewal"
	"github.com/O-tero/xc-cert-manager/internal/xc"
)

const appVersion = "1.0.0"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "xc-cert-manager",
		Short:         "Renew TLS certificates and publish them to F5 Distributed Cloud",
		Long:          `A tool that obtains or renews a TLS certificate via ACME and upserts it as a certificate object on the XC configuration API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenew(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "acme-xc.conf", "path to the configuration file")

	renewCmd := &cobra.Command{
		Use:   "renew",
		Short: "Run one issue-and-publish cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenew(cmd.Context(), configPath)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration file and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xc-cert-manager %s\n", appVersion)
		},
	}

	rootCmd.AddCommand(renewCmd, configCmd, versionCmd)

	return rootCmd
}

func runRenew(ctx context.Context, configPath string) error {
	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	logger := logging.New(env.LogLevel, env.LogJSON)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var iss issuer.Issuer
	switch cfg.Issuer {
	case config.IssuerLego:
		iss = issuer.NewLegoIssuer(cfg, logger)
	default:
		iss = issuer.NewCertbotRunner(cfg, env.CABundle, logger)
	}

	client := xc.NewClient(xc.TenantBaseURL(cfg.TenantName), env.HTTPTimeout, logger)
	runner := renewal.NewRunner(cfg, env, iss, client, logger)

	if ctx == nil {
		ctx = context.Background()
	}
	_, err = runner.Run(ctx)
	return err
}

func runConfig(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Settings())
	if err != nil {
		return fmt.Errorf("failed to render settings: %w", err)
	}
	fmt.Print(string(out))

	return nil
}
