/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/relaychat/apiserver/config"
	"github.com/relaychat/apiserver/internal/events"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes message events from the configured broker",
	Long: `Consumes message events from the configured broker and logs
each one. Requires EVENTS_BACKEND to be set. Usage:

	apiserver worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		backend, err := events.NewBackend(cmd.Context(), cfg.Events)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("EVENTS_BACKEND is required")
		}
		defer func() {
			_ = backend.Close()
		}()

		log.Printf("consuming events from %q", cfg.Events.Channel)
		return events.Consume(cmd.Context(), backend, cfg.Events.Channel, func(ctx context.Context, event events.MessageEvent) error {
			log.Printf("event %s message=%s chat=%s user=%s sent_at=%s",
				event.Type, event.MessageID, event.ChatID, event.UserID, event.SentAt)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
