// testserver starts a tatool API server with an in-memory store and stub
// executables for end-to-end testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/seantiz/tatool/internal/api"
	"github.com/seantiz/tatool/internal/executable"
	"github.com/seantiz/tatool/internal/executor"
	"github.com/seantiz/tatool/internal/store"
	"github.com/seantiz/tatool/internal/trials"
)

// sleepThenStop waits, then ends the module as complete.
func sleepThenStop(d time.Duration) executable.Executable {
	return executable.ExecutableFunc(func(ctx context.Context, c *executable.Controller) error {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
		c.StopModule()
		return nil
	})
}

// suspendOnce suspends the session and returns, holding the queue until
// the session is resumed.
var suspendOnce = executable.ExecutableFunc(func(_ context.Context, c *executable.Controller) error {
	c.Suspend()
	return nil
})

func main() {
	addr := ":8080"
	if v := os.Getenv("TATOOL_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := executable.NewRegistry()
	reg.Register("sleep", sleepThenStop(500*time.Millisecond))
	reg.Register("suspend", suspendOnce)
	reg.Register("timing-probe", &trials.TimingProbe{Samples: 100})

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	eng := executor.NewEngine(db, reg, logger)
	srv := api.NewServer(addr, db, reg, eng, logger, api.WithProjectsDir(os.TempDir()))

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
