// Package cli wires the devicesync commands.
package cli

import (
	"database/sql"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"device-sync/internal/config"
	"device-sync/internal/logging"
	"device-sync/internal/repos"
)

// NewRootCommand creates the root command for the devicesync CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devicesync",
		Short: "Device synchronization and conflict resolution engine",
		Long: "Tracks active device sessions, drains cross-device sync tasks,\n" +
			"resolves concurrent edit conflicts and derives continuity suggestions.",
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewQueueCommand())

	return cmd
}

func newLogger(cfg config.Config) *logging.Logger {
	if cfg.LogFile != "" {
		return logging.NewWithFile(cfg.LogLevel, cfg.LogFile)
	}
	return logging.New(cfg.LogLevel)
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	db, err := repos.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := repos.InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
