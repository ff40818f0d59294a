package cache

import (
	"net/url"
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)}
	c := New()
	c.now = clk.now
	return c, clk
}

func TestGetTTLBoundary(t *testing.T) {
	c, clk := newTestCache()
	c.Put("fp", []byte("payload"), time.Hour)

	clk.advance(time.Hour - time.Second)
	if _, ok := c.Get("fp"); !ok {
		t.Error("entry absent just before TTL expiry")
	}

	clk.advance(2 * time.Second)
	if _, ok := c.Get("fp"); ok {
		t.Error("entry present just after TTL expiry")
	}

	// Expired entries stay in place until swept.
	if c.Len() != 1 {
		t.Errorf("Len = %d after expired Get, want 1", c.Len())
	}
}

func TestGetStaleIgnoresTTL(t *testing.T) {
	c, clk := newTestCache()
	c.Put("fp", []byte("payload"), time.Minute)

	clk.advance(3 * time.Hour)

	if _, ok := c.Get("fp"); ok {
		t.Error("Get returned an expired entry")
	}
	got, ok := c.GetStale("fp", 6*time.Hour)
	if !ok {
		t.Fatal("GetStale missed an entry within maxAge")
	}
	if string(got) != "payload" {
		t.Errorf("GetStale = %q, want %q", got, "payload")
	}

	clk.advance(4 * time.Hour)
	if _, ok := c.GetStale("fp", 6*time.Hour); ok {
		t.Error("GetStale returned an entry past maxAge")
	}
}

func TestGetMissing(t *testing.T) {
	c, _ := newTestCache()
	if _, ok := c.Get("nope"); ok {
		t.Error("Get hit on empty cache")
	}
	if _, ok := c.GetStale("nope", time.Hour); ok {
		t.Error("GetStale hit on empty cache")
	}
}

func TestPutReplaces(t *testing.T) {
	c, _ := newTestCache()
	c.Put("fp", []byte("old"), time.Hour)
	c.Put("fp", []byte("new"), time.Hour)

	got, ok := c.Get("fp")
	if !ok || string(got) != "new" {
		t.Errorf("Get = %q, %v; want %q", got, ok, "new")
	}
}

func TestSweep(t *testing.T) {
	c, clk := newTestCache()
	c.Put("old", []byte("1"), time.Minute)
	clk.advance(2 * time.Hour)
	c.Put("young", []byte("2"), time.Minute)

	removed := c.Sweep(time.Hour)
	if removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after sweep, want 1", c.Len())
	}
	if _, ok := c.GetStale("young", time.Hour); !ok {
		t.Error("sweep removed an entry younger than maxAge")
	}
}

func TestFingerprint(t *testing.T) {
	a := url.Values{"lang": {"en"}, "id": {"42"}}
	b := url.Values{"id": {"42"}, "lang": {"en"}}

	if Fingerprint("/shop", a) != Fingerprint("/shop", b) {
		t.Error("fingerprint depends on parameter insertion order")
	}
	if Fingerprint("/shop", a) == Fingerprint("/items", a) {
		t.Error("different endpoints share a fingerprint")
	}
	if Fingerprint("/shop", a) == Fingerprint("/shop", url.Values{"lang": {"de"}}) {
		t.Error("different params share a fingerprint")
	}
}
