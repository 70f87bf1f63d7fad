package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/lumastudio/dataplane/internal/cli"
	"github.com/lumastudio/dataplane/v1/dal"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/rpc"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run one maintenance pass and print its report",
	Long: `Expire past pending bookings, complete past confirmed ones, delete
expired albums and orphan photos with their stored assets, and purge likes,
views and wall pins that reference deleted photos.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcedure(cmd, rpc.ProcRunMaintenance, nil)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the admin dashboard statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcedure(cmd, rpc.ProcGetAdminStats, nil)
	},
}

var recountTagsCmd = &cobra.Command{
	Use:   "recount-tags",
	Short: "Recompute tags.usage_count from photo tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcedure(cmd, rpc.ProcRecountTagUsage, nil)
	},
}

// runProcedure starts the data plane without the serve-only modules, calls
// one procedure as the system role and prints its result as JSON.
func runProcedure(cmd *cobra.Command, name string, args map[string]any) error {
	var client *dal.Client
	app := fx.New(coreOptions(cfg), fx.NopLogger, fx.Populate(&client))
	if err := app.Err(); err != nil {
		return cli.DBConnectError("initializing data plane", err)
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return cli.DBConnectError("starting data plane", err)
	}
	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancelStop()
		_ = app.Stop(stopCtx)
	}()

	ctx := identity.WithIdentity(cmd.Context(), identity.SystemIdentity())
	res := client.Rpc(ctx, name, args)
	if !res.OK() {
		return cli.ProcedureError(name, fmt.Errorf("%s: %s", res.Error.Code, res.Error.Message))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res.Data)
}
