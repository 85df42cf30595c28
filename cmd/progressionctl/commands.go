package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"progression/internal/aggregate"
	"progression/internal/app"
	"progression/internal/engine"
	"progression/internal/events"
	"progression/internal/outbound"
	"progression/internal/parking"
	id "progression/pkg/domain"
)

type builder func(ctx context.Context) (*app.App, error)

func newRootCmd(build builder) *cobra.Command {
	root := &cobra.Command{
		Use:           "progressionctl",
		Short:         "Operate the case and hearing progression engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newParkedCmd(build), newOutboxCmd(build), newIngestCmd(build))
	return root
}

// withApp builds the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, build builder, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := build(ctx)
	if a != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = a.Close(closeCtx)
		}()
	}
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

func newParkedCmd(build builder) *cobra.Command {
	parked := &cobra.Command{
		Use:   "parked",
		Short: "Inspect and replay parked and dead-lettered events",
	}

	var kind string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List parked or dead-lettered events",
		Long: `List records of the parking store, newest first.

Examples:
  # Everything waiting for replay
  progressionctl parked list --kind PARKED

  # The last 20 conflicts
  progressionctl parked list --kind CONFLICT --limit 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := parking.Kind(kind)
			if k != "" && !k.Valid() {
				return fmt.Errorf("unknown kind %q", kind)
			}
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				recs, err := a.Parked.List(ctx, parking.Filter{Kind: k, Limit: limit})
				if err != nil {
					return err
				}
				for _, r := range recs {
					if err := writeLine(cmd.OutOrStdout(), parkedLine{
						EventID:    r.EventID,
						Kind:       r.Kind,
						Type:       r.EventType,
						WaitingFor: r.WaitingFor,
						Attempts:   r.Attempts,
						Reason:     r.Reason,
						RecordedAt: r.RecordedAt,
					}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	list.Flags().StringVarP(&kind, "kind", "k", "", "Only records of this kind (PARKED, REJECTED, CONFLICT, UNROUTABLE)")
	list.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of records")

	var eventIDs []string
	var replayLimit int
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Replay parked events now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := engine.ReplayFilter{Limit: replayLimit}
			for _, raw := range eventIDs {
				eid, err := id.ParseEventID(raw)
				if err != nil {
					return err
				}
				filter.EventIDs = append(filter.EventIDs, eid)
			}
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.ReplayParked(ctx, filter)
				if err != nil {
					return err
				}
				return writeLine(cmd.OutOrStdout(), report)
			})
		},
	}
	replay.Flags().StringSliceVarP(&eventIDs, "event-id", "e", nil, "Replay only these events (repeatable)")
	replay.Flags().IntVarP(&replayLimit, "limit", "n", 0, "Maximum number of events to replay")

	parked.AddCommand(list, replay)
	return parked
}

func newOutboxCmd(build builder) *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect outbound events",
	}
	var status string
	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List outbound events by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				entries, err := a.Outbox.List(ctx, outbound.Status(status), limit)
				if err != nil {
					return err
				}
				for _, e := range entries {
					if err := writeLine(cmd.OutOrStdout(), outboxLine{
						ID:            e.ID,
						Type:          e.Type,
						Aggregate:     e.Key.String(),
						Version:       e.AggregateVersion,
						Status:        e.Status,
						Attempts:      e.Attempts,
						LastError:     e.LastError,
						NextAttemptAt: e.NextAttemptAt,
					}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	pending.Flags().StringVarP(&status, "status", "s", string(outbound.StatusPending), "Entry status (STAGED, PENDING, PUBLISHED, DEAD)")
	pending.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of entries")
	outbox.AddCommand(pending)
	return outbox
}

func newIngestCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <envelope.json>",
		Short: "Process one inbound envelope synchronously",
		Long: `Ingest reads an envelope from a file, or from stdin when the file is "-",
and runs it through the engine exactly as the consumer would.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.Process(ctx, env)
				if err != nil {
					return err
				}
				return writeLine(cmd.OutOrStdout(), resultLine{
					EventID:     res.EventID,
					Type:        res.Type,
					Disposition: res.Disposition,
					Reason:      res.Reason,
					WaitingFor:  res.WaitingFor,
					Staged:      res.Staged,
				})
			})
		},
	}
}

func readEnvelope(stdin io.Reader, path string) (events.Envelope, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return events.Envelope{}, fmt.Errorf("read envelope: %w", err)
	}
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return events.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.ID.IsNil() {
		return events.Envelope{}, fmt.Errorf("envelope has no id")
	}
	return env, nil
}

type parkedLine struct {
	EventID    id.EventID     `json:"eventId"`
	Kind       parking.Kind   `json:"kind"`
	Type       events.Type    `json:"eventType"`
	WaitingFor *aggregate.Key `json:"waitingFor,omitempty"`
	Attempts   int            `json:"attempts"`
	Reason     string         `json:"reason"`
	RecordedAt time.Time      `json:"recordedAt"`
}

type outboxLine struct {
	ID            string              `json:"id"`
	Type          events.OutboundType `json:"eventType"`
	Aggregate     string              `json:"aggregate"`
	Version       int64               `json:"version"`
	Status        outbound.Status     `json:"status"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"lastError,omitempty"`
	NextAttemptAt time.Time           `json:"nextAttemptAt"`
}

type resultLine struct {
	EventID     id.EventID         `json:"eventId"`
	Type        events.Type        `json:"eventType"`
	Disposition engine.Disposition `json:"disposition"`
	Reason      string             `json:"reason,omitempty"`
	WaitingFor  *aggregate.Key     `json:"waitingFor,omitempty"`
	Staged      int                `json:"staged"`
}

func writeLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
