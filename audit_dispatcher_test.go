package tokenkeep

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventTokenRenewed})
	}
	d.Close()

	if got := sink.countOf(EventTokenRenewed); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", d.Dropped())
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("disabled audit must produce a nil dispatcher")
	}
	// Nil receivers are no-ops.
	d.Emit(context.Background(), AuditEvent{EventType: EventTokenRenewed})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type gatedSink struct {
	gate chan struct{}
	mu   sync.Mutex
	seen int
}

func (g *gatedSink) Emit(_ context.Context, _ AuditEvent) {
	<-g.gate
	g.mu.Lock()
	g.seen++
	g.mu.Unlock()
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	sink := &gatedSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event may be in the sink call, one fits the buffer; the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventCheckFailed})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}

	close(sink.gate)
	d.Close()
}

func TestJSONWriterSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: EventSessionInit, SessionID: "s1", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: EventSessionSignOut, SessionID: "s1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if event.EventType != EventSessionInit || event.SessionID != "s1" {
		t.Fatalf("unexpected decoded event: %+v", event)
	}
}
