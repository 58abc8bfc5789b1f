// Command libraryctl administers a library database: schema migrations,
// staff accounts, sample data and offline reports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"library-management-api/internal/app"
	"library-management-api/internal/config"
)

// env is the state shared by every subcommand.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend *app.Backend
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Administer the library database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// logs go to stderr so report output can be piped
			e.logger = app.NewLogger(os.Stderr, os.Getenv("APP_ENV"))

			cfg, err := config.Load(e.logger)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = app.NewLogger(os.Stderr, cfg.AppEnv)

			e.backend, err = app.Open(cmd.Context(), cfg, e.logger)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.backend != nil {
				return e.backend.Close()
			}
			return nil
		},
	}
	cmd.SetContext(context.Background())

	cmd.AddCommand(
		migrateCmd(e),
		createAdminCmd(e),
		seedBooksCmd(e),
		reportCmd(e),
	)
	return cmd
}
