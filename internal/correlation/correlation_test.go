package correlation

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"
)

var idPattern = regexp.MustCompile(`^\d{14}-[0-9a-f]{8}-[0-9a-f]{4}$`)

func fixedFactory(t time.Time) *Factory {
	return NewFactory(
		WithHost(HostInfo{Name: "app-01", IP: "10.0.0.5"}),
		WithClock(func() time.Time { return t }),
	)
}

func TestFactoryNew_IDLayout(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	f := fixedFactory(now)

	cc := f.New()
	id := cc.CorrelationID()

	if !idPattern.MatchString(id) {
		t.Fatalf("correlation id %q does not match layout", id)
	}
	if !strings.HasPrefix(id, "20261015093000-") {
		t.Errorf("expected timestamp prefix, got %q", id)
	}
	if !strings.HasSuffix(id, "-"+hostHash("app-01")) {
		t.Errorf("expected host hash suffix %q, got %q", hostHash("app-01"), id)
	}
	if cc.ParentCorrelationID() != "" {
		t.Errorf("fresh context should have no parent, got %q", cc.ParentCorrelationID())
	}
	if cc.ServerName() != "app-01" || cc.ServerIP() != "10.0.0.5" {
		t.Errorf("unexpected server identity: %q %q", cc.ServerName(), cc.ServerIP())
	}
	if !cc.RequestStartTime().Equal(now) {
		t.Errorf("start time = %v, want %v", cc.RequestStartTime(), now)
	}
}

func TestFactoryNew_Unique(t *testing.T) {
	f := fixedFactory(time.Now())
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := f.New().CorrelationID()
		if seen[id] {
			t.Fatalf("duplicate correlation id %q", id)
		}
		seen[id] = true
	}
}

func TestFactoryNew_SortsByCreationTime(t *testing.T) {
	early := fixedFactory(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).New().CorrelationID()
	late := fixedFactory(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)).New().CorrelationID()
	if early >= late {
		t.Errorf("expected %q < %q", early, late)
	}
}

func TestFactoryFromUpstream(t *testing.T) {
	f := fixedFactory(time.Now())

	tests := []struct {
		name       string
		existing   string
		parent     string
		wantReuse  bool
		wantParent string
	}{
		{name: "id and parent", existing: "abc-123", parent: "root-1", wantReuse: true, wantParent: "root-1"},
		{name: "id only", existing: "abc-123", wantReuse: true},
		{name: "blank id generates fresh", existing: "   ", parent: "root-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cc := f.FromUpstream(tc.existing, tc.parent)
			if tc.wantReuse {
				if cc.CorrelationID() != tc.existing {
					t.Errorf("id = %q, want %q", cc.CorrelationID(), tc.existing)
				}
			} else if !idPattern.MatchString(cc.CorrelationID()) {
				t.Errorf("expected generated id, got %q", cc.CorrelationID())
			}
			if cc.ParentCorrelationID() != tc.wantParent {
				t.Errorf("parent = %q, want %q", cc.ParentCorrelationID(), tc.wantParent)
			}
		})
	}
}

func TestFactoryFromHeaders(t *testing.T) {
	f := fixedFactory(time.Now())

	h := http.Header{}
	h.Set(HeaderCorrelationID, "upstream-id")
	h.Set(HeaderParentCorrelationID, "parent-id")

	cc := f.FromHeaders(h)
	if cc.CorrelationID() != "upstream-id" || cc.ParentCorrelationID() != "parent-id" {
		t.Errorf("unexpected ids: %q %q", cc.CorrelationID(), cc.ParentCorrelationID())
	}

	if fresh := f.FromHeaders(http.Header{}); !idPattern.MatchString(fresh.CorrelationID()) {
		t.Errorf("missing header should generate an id, got %q", fresh.CorrelationID())
	}
}

func TestGetProperty(t *testing.T) {
	cc := fixedFactory(time.Now()).New()
	cc.SetProperty("tenant", "acme")
	cc.SetProperty("retries", 3)
	cc.SetProperty("tenant", "globex")

	if v, ok := GetProperty[string](cc, "tenant"); !ok || v != "globex" {
		t.Errorf("tenant = %q, %v; want globex, true", v, ok)
	}
	if v, ok := GetProperty[int](cc, "retries"); !ok || v != 3 {
		t.Errorf("retries = %d, %v; want 3, true", v, ok)
	}
	if _, ok := GetProperty[string](cc, "retries"); ok {
		t.Error("type mismatch should report absence")
	}
	if _, ok := GetProperty[string](cc, "missing"); ok {
		t.Error("missing key should report absence")
	}
	if _, ok := GetProperty[string](nil, "tenant"); ok {
		t.Error("nil context should report absence")
	}
}

func TestProperties_ReturnsCopy(t *testing.T) {
	cc := fixedFactory(time.Now()).New()
	cc.SetProperty("a", 1)

	props := cc.Properties()
	props["a"] = 2

	if v, _ := GetProperty[int](cc, "a"); v != 1 {
		t.Errorf("property bag mutated through copy: %d", v)
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	now := start
	f := NewFactory(
		WithHost(HostInfo{Name: "app-01"}),
		WithClock(func() time.Time { return now }),
	)
	cc := f.New()
	now = start.Add(250 * time.Millisecond)

	if got := cc.Elapsed(); got != 250*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 250ms", got)
	}
}

func TestZeroContext(t *testing.T) {
	var cc Context
	if got := cc.Elapsed(); got <= 0 {
		t.Errorf("Elapsed() = %v, want positive", got)
	}
	cc.SetProperty("tenant", "acme")
	if v, ok := GetProperty[string](&cc, "tenant"); !ok || v != "acme" {
		t.Errorf("GetProperty = %q, %v", v, ok)
	}
	if cc.CorrelationID() != "" {
		t.Errorf("CorrelationID = %q", cc.CorrelationID())
	}
}

func TestContextPlumbing(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("empty context should carry no correlation")
	}
	if IDFromContext(context.Background()) != "" {
		t.Error("empty context should have no id")
	}

	cc := fixedFactory(time.Now()).FromUpstream("trace-1", "parent-1")
	ctx := NewContext(context.Background(), cc)

	if FromContext(ctx) != cc {
		t.Error("FromContext should return the stored context")
	}
	if IDFromContext(ctx) != "trace-1" {
		t.Errorf("IDFromContext() = %q", IDFromContext(ctx))
	}
}

func TestInjectHeaders(t *testing.T) {
	h := http.Header{}
	InjectHeaders(h, nil)
	if len(h) != 0 {
		t.Errorf("nil context should not set headers: %v", h)
	}

	cc := fixedFactory(time.Now()).FromUpstream("trace-1", "parent-1")
	InjectHeaders(h, cc)
	if h.Get(HeaderCorrelationID) != "trace-1" {
		t.Errorf("correlation header = %q", h.Get(HeaderCorrelationID))
	}
	if h.Get(HeaderParentCorrelationID) != "parent-1" {
		t.Errorf("parent header = %q", h.Get(HeaderParentCorrelationID))
	}
}

func TestHostHash(t *testing.T) {
	if len(hostHash("")) != 4 {
		t.Errorf("hash of empty name should still be 4 chars")
	}
	if hostHash("a") == hostHash("b") {
		t.Errorf("different names should hash differently")
	}
	if hostHash("app-01") != hostHash("app-01") {
		t.Errorf("hash must be stable")
	}
}
