package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Mock mode helpers shared by every capability client.
// A client without its credential or binary still answers every call with a
// placeholder result, and says so exactly once per process.
// ---------------------------------------------------------------------------

var mockWarnings sync.Map // client name -> struct{}

// warnMockMode logs the mock-mode warning for client the first time it is called.
func warnMockMode(client, missing, envVar string) {
	if _, loaded := mockWarnings.LoadOrStore(client, struct{}{}); loaded {
		return
	}
	log.Printf("[%s] WARNING: %s not found. Running in mock mode.", client, missing)
	log.Printf("[%s] Set %s to enable actual generation.", client, envVar)
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// writeFile creates the parent directory of path and writes data to it.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// truncateString shortens s for log output.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
