package queue

import "testing"

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-redis-url", "jobs"); err == nil {
		t.Fatalf("expected parse error for malformed redis url")
	}
}

func TestNewWithClientDefaultsName(t *testing.T) {
	q := NewWithClient(nil, "")
	if q.name != defaultName {
		t.Fatalf("name = %q, want %q", q.name, defaultName)
	}
	q = NewWithClient(nil, "pf:custom")
	if q.name != "pf:custom" {
		t.Fatalf("name = %q, want pf:custom", q.name)
	}
}
