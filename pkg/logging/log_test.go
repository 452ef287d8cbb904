package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	cases := map[string]ModeFlag{
		"debug":    DebugMode,
		"":         InfoMode,
		"INFO":     InfoMode,
		"warn":     WarningMode,
		"error":    ErrorMode,
		"critical": CriticalMode,
		"off":      SilentMode,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q): expected %d, got %d (%v)", in, want, got, err)
		}
	}
	if _, err := ParseMode("loud"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestLogFile(t *testing.T) {
	defer func() {
		logger.Shutdown()
		logger = stdLogger{}
		log.SetOutput(os.Stderr)
		SetLogMode(InfoMode)
	}()

	path := filepath.Join(t.TempDir(), "volslicer.log")
	cfg := Config{Logfile: path, MaxSize: 1, MaxAge: 1, Level: "warning"}
	if err := cfg.SetLogger(); err != nil {
		t.Fatal(err)
	}

	Infof("hidden message\n")
	Warningf("shown message %d\n", 42)
	NewTimeLog().Warningf("timed message")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if strings.Contains(text, "hidden message") {
		t.Error("Expected info messages to be filtered at warning level")
	}
	if !strings.Contains(text, "WARNING shown message 42") {
		t.Errorf("Expected the warning in the log file, got %q", text)
	}
	if !strings.Contains(text, "timed message: ") {
		t.Errorf("Expected the elapsed time to be appended, got %q", text)
	}
}

func TestSetLoggerRejectsLevel(t *testing.T) {
	cfg := Config{Level: "chatty"}
	if err := cfg.SetLogger(); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
