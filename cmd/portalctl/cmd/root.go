package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// AppName is the binary name.
const AppName = "portalctl"

var (
	cfgFile   string
	auditPath string
	outputFmt string
	routeUser string

	app *appContext
)

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "portalctl is a terminal client for the citizen traffic violation portal",
	Long:          `Log in with an OTP or your face, then review violations, pay fines, file disputes and manage vehicle documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFmt != outputYAML && outputFmt != outputTable {
			return fmt.Errorf("unknown output format %q (use %s or %s)", outputFmt, outputYAML, outputTable)
		}

		var err error
		app, err = newAppContext(cmd.Context(), cfgFile, auditPath)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if app != nil {
			app.logger.Error(ctx, "command failed", err)
			_ = app.Close(ctx)
		}
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./portal.yaml or $HOME/.citizenportal/portal.yaml)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "audit-log", "", "append audit events to this file")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", outputTable, "output format: table or yaml")
	rootCmd.PersistentFlags().StringVar(&routeUser, "user-id", "", "citizen id to load pages for (defaults to the logged-in citizen)")
}
