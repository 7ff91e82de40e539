package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewWritesDailyFile(t *testing.T) {
	root := t.TempDir()
	log, err := New(root, "debug", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	log.Debugw("written", "k", "v")
	_ = log.Sync()

	name := filepath.Join(root, "logs", time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("log file empty")
	}
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if level.Enabled(zap.InfoLevel) {
		t.Fatalf("info enabled at warn level")
	}
	if err := SetLevel("loud"); err == nil {
		t.Fatalf("bad level accepted")
	}
}
