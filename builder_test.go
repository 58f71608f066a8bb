package tokenkeep

import (
	"context"
	"strings"
	"testing"
)

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().
		WithConfig(validConfig()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "credential store") {
		t.Fatalf("expected store requirement error, got %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	f := newFixture()
	cfg := validConfig()
	cfg.Renewal.BaseURL = ""

	_, err := New().
		WithConfig(cfg).
		WithStore(f.store).
		Build()
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestBuildRejectsInvalidLocation(t *testing.T) {
	f := newFixture()
	_, err := New().
		WithConfig(validConfig()).
		WithStore(f.store).
		WithLocation("://not-a-url").
		Build()
	if err == nil || !strings.Contains(err.Error(), "location") {
		t.Fatalf("expected location parse error, got %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	f := newFixture()
	b := New().
		WithConfig(validConfig()).
		WithStore(f.store)

	first, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer first.Close(context.Background())

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on builder reuse")
	}
}

func TestBuildAssignsUniqueSessionIDs(t *testing.T) {
	f := newFixture()

	a, err := New().WithConfig(validConfig()).WithStore(f.store).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer a.Close(context.Background())

	b, err := New().WithConfig(validConfig()).WithStore(f.store).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer b.Close(context.Background())

	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct non-empty session IDs, got %q and %q", a.ID(), b.ID())
	}
}

func TestWithConfigIsolatesCallerMaps(t *testing.T) {
	f := newFixture()
	cfg := validConfig()
	cfg.Renewal.Headers = map[string]string{"X-A": "1"}

	s, err := New().
		WithConfig(cfg).
		WithStore(f.store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer s.Close(context.Background())

	cfg.Renewal.Headers["X-A"] = "mutated"
	if s.config.Renewal.Headers["X-A"] != "1" {
		t.Fatal("session config must not alias caller maps")
	}
}
