package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumastudio/dataplane/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string

	// Persistent flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dataplane",
	Short: "Role-aware data access layer for the studio backend",
	Long: `dataplane - role-aware data access layer

dataplane compiles filtered table requests into parameterized SQL, enforces
per-role row rules and runs the stored procedures of the photo studio
backend: bookings, albums, likes, wall pins and maintenance.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	groupServer = "server"
	groupJobs   = "jobs"
	groupConfig = "config"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover dataplane.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupServer, Title: "Server:"},
		&cobra.Group{ID: groupJobs, Title: "Jobs:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)

	serveCmd.GroupID = groupServer
	rootCmd.AddCommand(serveCmd)

	maintenanceCmd.GroupID = groupJobs
	statsCmd.GroupID = groupJobs
	recountTagsCmd.GroupID = groupJobs
	rootCmd.AddCommand(maintenanceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(recountTagsCmd)

	configCmd.GroupID = groupConfig
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.ExitWithError(err)
	}
}
