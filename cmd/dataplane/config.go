package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lumastudio/dataplane/internal/cli"
)

const redacted = "******"

var configShowSource bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  `Show the effective configuration after merging defaults, config file, and environment variables. Secrets are redacted.`,
	Example: `  # Show effective configuration
  dataplane config show

  # Show configuration with source file path
  dataplane config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if configShowSource {
			if configPath != "" {
				fmt.Fprintf(out, "Config file: %s\n\n", configPath)
			} else {
				fmt.Fprintln(out, "Config file: (none, using defaults)")
				fmt.Fprintln(out)
			}
		}

		body, err := yaml.Marshal(redactSecrets(*cfg))
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(body))
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "show config file source")
	configCmd.AddCommand(configShowCmd)
}

func redactSecrets(c cli.Config) cli.Config {
	if c.Database.Connection.Password != "" {
		c.Database.Connection.Password = redacted
	}
	if c.Minio.Connection.SecretAccessKey != "" {
		c.Minio.Connection.SecretAccessKey = redacted
	}
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	if c.Kafka.SASL.Password != "" {
		c.Kafka.SASL.Password = redacted
	}
	return c
}
