package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		present []string
		absent  []string
	}{
		{
			name:    "debug shows everything",
			level:   "debug",
			present: []string{"debug message", "info message", "warn message", "error message"},
		},
		{
			name:    "warn filters debug and info",
			level:   "warn",
			present: []string{"warn message", "error message"},
			absent:  []string{"debug message", "info message"},
		},
		{
			name:    "unknown level defaults to info",
			level:   "verbose",
			present: []string{"info message"},
			absent:  []string{"debug message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, Config{Level: tt.level, Format: "text"})

			log.Debug("debug message")
			log.Info("info message")
			log.Warn("warn message")
			log.Error("error message")

			content := buf.String()
			for _, want := range tt.present {
				if !strings.Contains(content, want) {
					t.Errorf("log output missing %q", want)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(content, unwanted) {
					t.Errorf("log output should not contain %q", unwanted)
				}
			}
		})
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "info"}).With("component", "watcher")

	log.Info("watch registered", "path", "/srv/static")

	content := buf.String()
	for _, want := range []string{"watch registered", "component=watcher", "path=/srv/static"} {
		if !strings.Contains(content, want) {
			t.Errorf("log output missing %q: %s", want, content)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "info", Format: "json"})

	log.Info("change forwarded", "event", "ENTRY_CREATE", "count", 3)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}

	if msg, _ := entry["msg"].(string); msg != "change forwarded" {
		t.Errorf("msg = %v, want change forwarded", entry["msg"])
	}
	if kind, _ := entry["event"].(string); kind != "ENTRY_CREATE" {
		t.Errorf("event = %v, want ENTRY_CREATE", entry["event"])
	}
	if count, _ := entry["count"].(float64); count != 3 {
		t.Errorf("count = %v, want 3", entry["count"])
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "browsersync.log")

	log := New(Config{Level: "info", Output: logFile, Format: "text"})
	log.Info("message 1")
	log.Error("message 2")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "message 1") || !strings.Contains(content, "message 2") {
		t.Errorf("log file content = %q, want both messages", content)
	}
}

func TestUnopenableOutputFallsBack(t *testing.T) {
	dir := t.TempDir()

	// A directory cannot be opened for appending.
	log := New(Config{Level: "info", Output: dir})
	if log == nil {
		t.Fatal("New() returned nil")
	}
	log.Info("still works")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
		{"DEBUG", "DEBUG"},
		{" WaRn ", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := ParseLevel(tt.level).String(); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestOpenOutput(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "", "STDOUT"} {
		t.Run(output, func(t *testing.T) {
			writer, err := openOutput(output)
			if err != nil {
				t.Fatalf("openOutput(%q) error = %v", output, err)
			}
			if writer == nil {
				t.Errorf("openOutput(%q) returned nil writer", output)
			}
		})
	}
}

func TestNoop(t *testing.T) {
	log := Noop()
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
	log.With("k", "v").Info("with")
}

func BenchmarkLogWithFields(b *testing.B) {
	log := Noop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("change forwarded", "filename", "/srv/static/app.js", "event", "ENTRY_MODIFY")
	}
}
