package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"device-sync/internal/config"
	"device-sync/internal/engine"
)

// NewQueueCommand enqueues an offline-sync task without running a full pass.
func NewQueueCommand() *cobra.Command {
	var (
		userID   string
		deviceID string
		syncType string
		payload  string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Enqueue an offline-sync task for a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := newLogger(cfg)

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			taskID, err := engine.New(db, log).QueueOfflineSync(
				userID, deviceID, syncType, json.RawMessage(payload), priority)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), taskID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "source device id")
	cmd.Flags().StringVarP(&syncType, "type", "t", "", "sync type (context|conversation|settings|project)")
	cmd.Flags().StringVarP(&payload, "payload", "p", "{}", "payload JSON")
	cmd.Flags().IntVar(&priority, "priority", 0, "task priority (defaults to 5)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("device")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
