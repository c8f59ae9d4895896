package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Log(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "table decoded",
			fields:  Fields{"rows": 12},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "row classified",
			want:    false,
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "store write failed",
			err:     errors.New("connection reset"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(LevelInfo, &buf)

			logger.log(tt.level, tt.message, tt.fields, tt.err)

			if logged := buf.Len() > 0; logged != tt.want {
				t.Errorf("log() logged = %v, want %v", logged, tt.want)
			}
		})
	}
}

func TestLogger_EntryIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf)

	logger.Error("store write failed", Fields{"key": "precount:projection"}, errors.New("status 500"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if entry.Level != "ERROR" {
		t.Errorf("Level = %q, want ERROR", entry.Level)
	}
	if entry.Error != "status 500" {
		t.Errorf("Error = %q, want status 500", entry.Error)
	}
	if entry.Fields["key"] != "precount:projection" {
		t.Errorf("Fields = %v, want key field", entry.Fields)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	parent := New(LevelInfo, &buf)
	child := parent.With(Fields{"run_id": "abc"})

	child.Info("region skipped", Fields{"region": "대청동"})
	parent.Info("parent entry", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}

	var childEntry, parentEntry LogEntry
	if err := json.Unmarshal([]byte(lines[0]), &childEntry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &parentEntry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if childEntry.Fields["run_id"] != "abc" || childEntry.Fields["region"] != "대청동" {
		t.Errorf("child fields = %v, want run_id and region", childEntry.Fields)
	}
	if _, ok := parentEntry.Fields["run_id"]; ok {
		t.Error("With() should not add fields to the parent logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" WARN ", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"info logs at debug", LevelDebug, LevelInfo, true},
		{"debug doesn't log at info", LevelInfo, LevelDebug, false},
		{"warn doesn't log at error", LevelError, LevelWarn, false},
		{"error always logs", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.minLevel, &buf)

			logger.log(tt.logLevel, "test", nil, nil)

			if logged := buf.Len() > 0; logged != tt.shouldLog {
				t.Errorf("shouldLog = %v, want %v", logged, tt.shouldLog)
			}
		})
	}
}

func TestMetrics_Counter(t *testing.T) {
	m := NewMetrics()

	m.IncrCounter("rows.skipped")
	m.IncrCounter("rows.skipped")
	m.AddCounter("rows.skipped", 3)

	if got := m.Counter("rows.skipped"); got != 5 {
		t.Errorf("Counter() = %v, want 5", got)
	}
	if got := m.Counter("never.touched"); got != 0 {
		t.Errorf("Counter() = %v, want 0", got)
	}

	snapshot := m.GetSnapshot()
	if snapshot.Counters["rows.skipped"] != 5 {
		t.Errorf("snapshot counter = %v, want 5", snapshot.Counters["rows.skipped"])
	}
}

func TestMetrics_Gauge(t *testing.T) {
	m := NewMetrics()

	m.SetGauge("completion_ratio", 12.5)
	m.SetGauge("completion_ratio", 61.35)

	if got := m.GetSnapshot().Gauges["completion_ratio"]; got != 61.35 {
		t.Errorf("Gauge = %v, want 61.35", got)
	}
}

func TestMetrics_Timing(t *testing.T) {
	m := NewMetrics()

	m.RecordTiming("fetch", 100*time.Millisecond)
	m.RecordTiming("fetch", 200*time.Millisecond)
	m.RecordTiming("fetch", 150*time.Millisecond)

	timing := m.GetSnapshot().Timings["fetch"]
	if timing.Count != 3 {
		t.Errorf("Timing count = %v, want 3", timing.Count)
	}
	if timing.Min != "100ms" {
		t.Errorf("Min timing = %v, want 100ms", timing.Min)
	}
	if timing.Max != "200ms" {
		t.Errorf("Max timing = %v, want 200ms", timing.Max)
	}
	if timing.Average != "150ms" {
		t.Errorf("Average timing = %v, want 150ms", timing.Average)
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	original := Default()
	defer SetDefault(original)
	SetDefault(New(LevelDebug, &buf))

	Debug("debug", nil)
	Info("info", Fields{"key": "value"})
	Warn("warn", nil)
	Error("error", Fields{"component": "test"}, errors.New("test"))

	if got := strings.Count(buf.String(), "\n"); got != 4 {
		t.Errorf("package-level functions wrote %d lines, want 4", got)
	}
}
