// Package testutil provides shared test helpers for building seeded sessions.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/float/internal/blockservice"
	"github.com/starford/float/internal/llm"
	"github.com/starford/float/internal/runlog"
	"github.com/starford/float/internal/seed"
)

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Reply returns a generator that always answers with text.
func Reply(text string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return text, nil
	})
}

// TestDB opens an in-memory run log that is closed on cleanup.
func TestDB(t *testing.T) *runlog.DB {
	t.Helper()
	db, err := runlog.Open(runlog.MemoryDSN)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Session builds a service over the bundled dataset with an in-memory run
// log. The service is closed on cleanup.
func Session(t *testing.T, gen llm.Generator, opts ...blockservice.Option) *blockservice.Service {
	t.Helper()
	ds, err := seed.Load("")
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]blockservice.Option{blockservice.WithRunLog(TestDB(t))}, opts...)
	svc, err := blockservice.New(ds, gen, Logger(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)
	return svc
}
