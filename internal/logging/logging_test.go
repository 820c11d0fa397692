package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func jsonLogger(t *testing.T, level string) (zerolog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: level, Out: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	return logger, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", buf.String(), err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"":        zerolog.InfoLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogEvaluation(t *testing.T) {
	logger, buf := jsonLogger(t, "debug")
	LogEvaluation(WithTemplate(logger, "iron-condor"), "metrics", 4, 101.5, 3*time.Millisecond)

	m := decode(t, buf)
	if m["event"] != "evaluation" || m["template"] != "iron-condor" || m["legs"] != float64(4) {
		t.Errorf("unexpected fields: %v", m)
	}
}

func TestLogEvaluation_HiddenAtInfo(t *testing.T) {
	logger, buf := jsonLogger(t, "info")
	LogEvaluation(logger, "metrics", 1, 100, time.Millisecond)
	if buf.Len() != 0 {
		t.Errorf("debug event leaked at info level: %s", buf.String())
	}
}

func TestLogRequest_Levels(t *testing.T) {
	tests := []struct {
		status int
		err    error
		level  string
	}{
		{200, nil, "info"},
		{404, errors.New("unknown template"), "warn"},
		{500, errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		logger, buf := jsonLogger(t, "info")
		LogRequest(WithRequestID(logger, "abc"), "POST", "/api/v1/strategy/analyze", tt.status, time.Millisecond, tt.err)

		m := decode(t, buf)
		if m["level"] != tt.level || m["status"] != float64(tt.status) || m["request_id"] != "abc" {
			t.Errorf("status %d logged as %v", tt.status, m)
		}
		if tt.err != nil && m["error"] != tt.err.Error() {
			t.Errorf("error field = %v", m["error"])
		}
	}
}

func TestContextLogger(t *testing.T) {
	logger, buf := jsonLogger(t, "info")
	ctx := WithLogger(context.Background(), WithOperation(logger, "scan"))

	l := FromContext(ctx)
	l.Info().Msg("hello")
	if decode(t, buf)["operation"] != "scan" {
		t.Error("logger from context lost its fields")
	}

	nop := FromContext(context.Background())
	nop.Info().Msg("dropped")
}

func TestFileLogging(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "optlab.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level: "info", Console: true, File: true, FilePath: path,
		MaxSize: 1, MaxBackups: 1, MaxAge: 1, Out: &console,
	})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	LogScan(logger, 15, 1, time.Second)
	if console.Len() == 0 {
		t.Error("console writer received nothing")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("rotating log file not written: %v", err)
	}
}

func TestConsoleLevelLabels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "debug", Console: true, Out: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger.Warn().Msg("slow scan")
	if out := stripColor(buf.String()); !strings.Contains(out, "WRN") || !strings.Contains(out, "slow scan") {
		t.Errorf("console line = %q", buf.String())
	}
	if got := stripColor(formatLevel("trace")); got != "TRA" {
		t.Errorf("formatLevel(trace) = %q", got)
	}
}

func stripColor(s string) string {
	for {
		i := strings.Index(s, "\x1b[")
		if i < 0 {
			return s
		}
		j := strings.IndexByte(s[i:], 'm')
		if j < 0 {
			return s
		}
		s = s[:i] + s[i+j+1:]
	}
}
