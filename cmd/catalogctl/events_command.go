package main

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/queue"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var deadLetters bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print review events from the message queue as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Queue.Enabled {
				return errors.New("queue is not enabled in the configuration")
			}

			q, err := queue.New(cfg.Queue)
			if err != nil {
				return err
			}
			defer q.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			if deadLetters {
				return q.ConsumeDeadLetters(runCtx, func(evt models.SubmissionEvent, reason string) error {
					return enc.Encode(deadLetter{SubmissionEvent: evt, Reason: reason})
				})
			}
			return q.ConsumeEvents(runCtx, func(evt models.SubmissionEvent) error {
				return enc.Encode(evt)
			})
		},
	}

	cmd.Flags().BoolVar(&deadLetters, "dead-letters", false, "Drain the dead letter queue instead")

	return cmd
}

type deadLetter struct {
	models.SubmissionEvent
	Reason string `json:"failure_reason"`
}
