package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"device-sync/internal/config"
	"device-sync/internal/engine"
)

// NewRunCommand triggers one synchronization pass for a user. This is what a
// cron entry or an operator invokes outside the HTTP path.
func NewRunCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one synchronization pass for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := newLogger(cfg)

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := engine.New(db, log).Run(userID)
			if err != nil {
				return err
			}
			out, err := json.Marshal(summary)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id to synchronize")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
