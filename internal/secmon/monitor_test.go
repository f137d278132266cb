package secmon

import (
	"fmt"
	"sync"
	"testing"
)

type recordingBlocklist struct {
	mu      sync.Mutex
	blocked map[string]string
}

func newRecordingBlocklist() *recordingBlocklist {
	return &recordingBlocklist{blocked: make(map[string]string)}
}

func (b *recordingBlocklist) Block(identifier, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[identifier] = reason
}

func TestCriticalEventBlocksImmediately(t *testing.T) {
	bl := newRecordingBlocklist()
	m := New(Config{MaxEvents: 16, IncidentThreshold: 100}, bl)

	m.LogEvent(Event{
		Type:       "sql_injection",
		Identifier: "ip:9.9.9.9",
		Endpoint:   "/api/unlock",
		Severity:   SeverityCritical,
	})

	if !m.IsBlocked("ip:9.9.9.9") {
		t.Fatal("critical event did not block identifier")
	}
	if bl.blocked["ip:9.9.9.9"] == "" {
		t.Fatal("blocklist not notified")
	}
}

func TestIncidentThresholdBlocks(t *testing.T) {
	m := New(Config{MaxEvents: 16, IncidentThreshold: 3}, nil)

	for i := 0; i < 2; i++ {
		m.LogEvent(Event{Type: "probe", Identifier: "ip:1.1.1.1", Severity: SeverityWarn})
	}
	if m.IsBlocked("ip:1.1.1.1") {
		t.Fatal("blocked below threshold")
	}
	m.LogEvent(Event{Type: "probe", Identifier: "ip:1.1.1.1", Severity: SeverityWarn})
	if !m.IsBlocked("ip:1.1.1.1") {
		t.Fatal("not blocked at threshold")
	}

	// Info events never count as incidents.
	m.LogEvent(Event{Type: "lookup", Identifier: "ip:2.2.2.2", Severity: SeverityInfo})
	if m.Incidents("ip:2.2.2.2") != 0 {
		t.Fatal("info event counted as incident")
	}
}

func TestRingBufferEvictsOldest(t *testing.T) {
	m := New(Config{MaxEvents: 4, IncidentThreshold: 100}, nil)

	for i := 0; i < 6; i++ {
		m.LogEvent(Event{Type: fmt.Sprintf("e%d", i), Severity: SeverityInfo})
	}

	events := m.Events()
	if len(events) != 4 {
		t.Fatalf("buffer holds %d events, want 4", len(events))
	}
	if events[0].Type != "e2" || events[3].Type != "e5" {
		t.Fatalf("wrong eviction order: first=%s last=%s", events[0].Type, events[3].Type)
	}
}

func TestDetectorsMatchAndIgnore(t *testing.T) {
	cases := []struct {
		name  string
		fn    func(string) bool
		hits  []string
		clean []string
	}{
		{
			name: "sql",
			fn:   DetectSQLInjection,
			hits: []string{
				"1 UNION SELECT password FROM users",
				"' OR '1'='1",
				"x; DROP TABLE members",
				"admin'-- ",
			},
			clean: []string{"", "a@example.com", "icl_AbC123", "union station"},
		},
		{
			name: "xss",
			fn:   DetectXSS,
			hits: []string{
				"<script>alert(1)</script>",
				"javascript:alert(1)",
				`<img src=x onerror=alert(1)>`,
			},
			clean: []string{"", "plain text", "a <b> c"},
		},
		{
			name: "traversal",
			fn:   DetectPathTraversal,
			hits: []string{
				"../../etc/passwd",
				"..\\..\\windows",
				"%2e%2e%2fsecret.pdf",
			},
			clean: []string{"", "briefs/2024/q1.pdf", "file..name.pdf"},
		},
	}

	for _, tc := range cases {
		for _, s := range tc.hits {
			if !tc.fn(s) {
				t.Errorf("%s: %q not detected", tc.name, s)
			}
		}
		for _, s := range tc.clean {
			if tc.fn(s) {
				t.Errorf("%s: %q false positive", tc.name, s)
			}
		}
	}
}
