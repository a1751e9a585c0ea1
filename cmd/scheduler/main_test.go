package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/scheduling-agent/internal/config"
	"github.com/capitalize-ai/scheduling-agent/internal/handler"
	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/internal/store"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "scheduler version 1.2.3\n", out.String())
}

func TestMCPCmd_RequiresUser(t *testing.T) {
	cmd := newMCPCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")
}

func TestOpenCalendar_RegistersTools(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:        filepath.Join(t.TempDir(), "scheduler.db"),
		MaxCancelRangeDays: 30,
	}

	db, cal, reg, err := openCalendar(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.NotNil(t, cal)
	assert.Equal(t, []string{"book_meeting", "cancel_meetings", "check_availability"}, reg.Names())
	assert.Equal(t, "sqlite", db.Dialect())
}

func TestOpenHistory_SQL(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	checks := map[string]handler.Pinger{"database": db}
	cfg := &config.Config{HistoryBackend: config.HistorySQL}

	history, closeFn, err := openHistory(context.Background(), cfg, db, time.UTC, logger.NewNop(), checks)
	require.NoError(t, err)
	defer closeFn()

	ctx := context.Background()
	require.NoError(t, history.Append(ctx, "alice", model.RoleUser, "hi"))
	turns, err := history.RecentWindow(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi", turns[0].Content)

	assert.NotContains(t, checks, "nats")
}
