package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJsonLinesLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	slog := NewJsonLinesLogRecorder(&buf).NewSession()

	assert.Nil(t, slog.Record(&CommandRun{
		Argv:     []string{"echo", "hi"},
		ExitCode: 0,
	}))
	assert.Nil(t, slog.Record(&PipelineRun{
		Stages:        [][]string{{"echo", "hi"}, {"cat"}},
		StageStatuses: []int{0, 0},
		ExitCode:      0,
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var first, second LogEntry
	assert.Nil(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Nil(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.NotZero(t, first.TimestampMicros)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, first.SessionID, second.SessionID, "events in a session share an ID")

	if assert.NotNil(t, first.CommandRun) {
		assert.Equal(t, []string{"echo", "hi"}, first.CommandRun.Argv)
	}
	assert.Nil(t, first.PipelineRun)

	if assert.NotNil(t, second.PipelineRun) {
		assert.Equal(t, []int{0, 0}, second.PipelineRun.StageStatuses)
	}
}

func TestSessionlessRecorder(t *testing.T) {
	var buf bytes.Buffer
	slog := NewJsonLinesLogRecorder(&buf).Sessionless()

	assert.Nil(t, slog.Record(&LoginAttempt{Success: false, Username: "root"}))

	var entry LogEntry
	assert.Nil(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Empty(t, entry.SessionID)
	if assert.NotNil(t, entry.LoginAttempt) {
		assert.False(t, entry.LoginAttempt.Success)
	}
}

func TestDistinctSessionsGetDistinctIDs(t *testing.T) {
	logger := NewNopLogRecorder()

	a := logger.NewSession()
	b := logger.NewSession()
	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestRecordedErrorText(t *testing.T) {
	var buf bytes.Buffer
	slog := NewJsonLinesLogRecorder(&buf).NewSession()

	assert.Nil(t, slog.Record(&CommandRun{
		Argv:     []string{"definitely-missing"},
		ExitCode: 127,
		Error:    "definitely-missing: executable file not found",
	}))

	var entry LogEntry
	assert.Nil(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	if assert.NotNil(t, entry.CommandRun) {
		assert.Equal(t, 127, entry.CommandRun.ExitCode)
		assert.Contains(t, entry.CommandRun.Error, "definitely-missing")
	}
}
