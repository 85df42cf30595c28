package engine

import (
	"context"
	"fmt"

	"progression/internal/aggregate"
	"progression/internal/parking"
	id "progression/pkg/domain"
)

// ReplayFilter selects parked events to replay. Empty EventIDs selects all.
type ReplayFilter struct {
	EventIDs []id.EventID
	Limit    int
}

// ReplayReport counts the outcome of a replay pass.
type ReplayReport struct {
	Replayed    int `json:"replayed"`
	Resolved    int `json:"resolved"`
	StillParked int `json:"stillParked"`
	Failed      int `json:"failed"`
}

// ReplayParked offers parked events to the engine again, once each. Events
// that still cannot be applied stay parked with their attempt count bumped.
func (e *Engine) ReplayParked(ctx context.Context, f ReplayFilter) (ReplayReport, error) {
	recs, err := e.parked.List(ctx, parking.Filter{Kind: parking.KindParked})
	if err != nil {
		return ReplayReport{}, fmt.Errorf("list parked events: %w", err)
	}
	want := make(map[id.EventID]bool, len(f.EventIDs))
	for _, eid := range f.EventIDs {
		want[eid] = true
	}

	var report ReplayReport
	for _, rec := range recs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if len(want) > 0 && !want[rec.EventID] {
			continue
		}
		if f.Limit > 0 && report.Replayed >= f.Limit {
			break
		}
		res, err := e.replay(ctx, rec)
		report.Replayed++
		switch {
		case err != nil:
			report.Failed++
		case res.Disposition == DispositionTransient:
			report.StillParked++
		default:
			report.Resolved++
			e.wake(ctx, res.Created)
		}
	}
	e.logger.InfoContext(ctx, "parked events replayed",
		"replayed", report.Replayed, "resolved", report.Resolved,
		"still_parked", report.StillParked, "failed", report.Failed)
	return report, nil
}

func (e *Engine) replay(ctx context.Context, rec parking.Record) (Result, error) {
	res, err := e.process(ctx, rec.Envelope, 1, true)
	if err != nil {
		e.metrics.IncReplayed("failed")
		e.logger.ErrorContext(ctx, "parked event replay failed", "event_id", rec.EventID, "type", rec.EventType, "error", err)
		return res, err
	}
	e.metrics.IncReplayed(string(res.Disposition))
	return res, nil
}

// wake replays events parked against aggregates that were just created. An
// aggregate created by a replay wakes its own waiters in turn.
func (e *Engine) wake(ctx context.Context, created []aggregate.Key) {
	queue := append([]aggregate.Key(nil), created...)
	done := map[id.EventID]bool{}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		recs, err := e.parked.Waiting(ctx, key)
		if err != nil {
			e.logger.ErrorContext(ctx, "load parked events failed", "aggregate", key.String(), "error", err)
			continue
		}
		for _, rec := range recs {
			if done[rec.EventID] {
				continue
			}
			done[rec.EventID] = true
			e.logger.InfoContext(ctx, "replaying parked event", "event_id", rec.EventID, "type", rec.EventType, "waiting_for", key.String())
			res, err := e.replay(ctx, rec)
			if err != nil {
				continue
			}
			queue = append(queue, res.Created...)
		}
	}
}
