package main

import (
	"context"
	"testing"

	"github.com/vinayprograms/taskkit/config"
	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/store"
	"github.com/vinayprograms/taskkit/task"
)

// brokenStore fails to load and records whether it was released.
type brokenStore struct {
	closed bool
}

func (s *brokenStore) Load() ([]*task.Task, error) {
	return nil, errors.Storage("reading task file", nil)
}

func (s *brokenStore) Save(records []*task.Task) error { return nil }

func (s *brokenStore) Flush(ctx context.Context) error { return nil }

func (s *brokenStore) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func TestOpenTrackerClosesStoreOnFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	st := &brokenStore{}

	tr, err := openTracker(cfg, st, logging.New())
	if err == nil {
		tr.Close(context.Background())
		t.Fatal("expected an error from a store that cannot load")
	}
	if !st.closed {
		t.Fatal("store not closed after construction failure")
	}
}

func TestOpenTrackerMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	tr, err := openTracker(cfg, store.NewMemoryStore(), logging.New())
	if err != nil {
		t.Fatalf("openTracker failed: %v", err)
	}
	defer tr.Close(context.Background())

	if _, err := tr.Add("first task", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.Validation("bad input")); got != 1 {
		t.Fatalf("business error: expected exit 1, got %d", got)
	}
	if got := exitCode(errors.Storage("disk gone", nil)); got != 2 {
		t.Fatalf("storage error: expected exit 2, got %d", got)
	}
}
