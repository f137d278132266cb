package innercircle

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAuditDispatcherDelivers(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "token.issue", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "token.issue" || !ev.Success {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never drains forces the buffer full.
	block := make(chan struct{})
	sink := blockingSink{release: block}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "session.create"})
	}
	if d.Dropped() == 0 {
		t.Fatal("no events dropped with a full buffer")
	}
	close(block)
	d.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestAuditDisabledIsNoOp(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled auditing must produce a nil dispatcher")
	}
	// All operations are safe on nil.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher dropped events")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		EventType: "key.verify",
		MemberID:  "m1",
		Success:   true,
	})

	var ev AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if ev.EventType != "key.verify" || ev.MemberID != "m1" {
		t.Fatalf("round trip mismatch: %+v", ev)
	}
}
