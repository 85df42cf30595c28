package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"progression/internal/app"
	"progression/internal/engine"
	"progression/internal/events"
	"progression/internal/parking"
	"progression/internal/platform/config"
	id "progression/pkg/domain"
)

// memoryApp builds one in-memory app shared by every command of a test.
func memoryApp(t *testing.T) builder {
	t.Helper()
	var cfg config.Config
	cfg.Engine.OrderingAttempts = 1
	cfg.Engine.OrderingBackoff = time.Millisecond
	a, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return func(context.Context) (*app.App, error) { return a, nil }
}

func execute(t *testing.T, build builder, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(build)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func unknownEnvelope(t *testing.T) (events.Envelope, []byte) {
	t.Helper()
	env := events.Envelope{
		ID:         id.EventID(uuid.New()),
		Type:       events.Type("listing.court-room-painted"),
		OccurredAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		Source:     "listing",
		Payload:    json.RawMessage(`{}`),
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return env, raw
}

func TestIngestAndParked(t *testing.T) {
	build := memoryApp(t)
	env, raw := unknownEnvelope(t)
	path := filepath.Join(t.TempDir(), "envelope.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	out, err := execute(t, build, "", "ingest", path)
	require.NoError(t, err)
	var res resultLine
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, env.ID, res.EventID)
	assert.Equal(t, engine.DispositionUnroutable, res.Disposition)

	out, err = execute(t, build, "", "parked", "list", "--kind", "UNROUTABLE")
	require.NoError(t, err)
	var line parkedLine
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	assert.Equal(t, env.ID, line.EventID)
	assert.Equal(t, parking.KindUnroutable, line.Kind)

	out, err = execute(t, build, "", "parked", "replay")
	require.NoError(t, err)
	var report engine.ReplayReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Replayed)
}

func TestIngestFromStdin(t *testing.T) {
	_, raw := unknownEnvelope(t)
	out, err := execute(t, memoryApp(t), string(raw), "ingest", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"disposition":"unroutable"`)
}

func TestArgumentErrors(t *testing.T) {
	build := memoryApp(t)

	_, err := execute(t, build, "", "parked", "list", "--kind", "LOST")
	assert.ErrorContains(t, err, "unknown kind")

	_, err = execute(t, build, "", "parked", "replay", "--event-id", "nope")
	assert.Error(t, err)

	_, err = execute(t, build, `{"type":"hearing-confirmed"}`, "ingest", "-")
	assert.ErrorContains(t, err, "no id")
}

func TestOutboxPendingEmpty(t *testing.T) {
	out, err := execute(t, memoryApp(t), "", "outbox", "pending")
	require.NoError(t, err)
	assert.Empty(t, out)
}
