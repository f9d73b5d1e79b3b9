package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/queue"
)

func newNotifyConsumerCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "notify-consumer",
		Short: "Append waiting list notifications from RabbitMQ to a log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			err := queue.StartNotificationConsumer(ctx, queue.BrokerURL(), dir)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "log-dir", "logs", "directory holding notifications.log")
	return cmd
}
