package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

type memStore struct {
	mu   sync.Mutex
	rows []model.RequestLog
	err  error
	done chan struct{}
}

func (m *memStore) InsertRequest(_ context.Context, req model.RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		close(m.done)
		return m.err
	}
	m.rows = append(m.rows, req)
	close(m.done)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordCountsAndPersists(t *testing.T) {
	store := &memStore{done: make(chan struct{})}
	sink := New(prometheus.NewRegistry(), store, discardLogger())

	sink.Record("/shop", "GET", 120*time.Millisecond, 200, true, "", 0, 512)

	if got := testutil.ToFloat64(sink.requests.WithLabelValues("/shop", "success")); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("request log row never written")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(store.rows))
	}
	row := store.rows[0]
	if row.Endpoint != "/shop" || row.StatusCode != 200 || !row.Success || row.ResponseBytes != 512 {
		t.Errorf("row = %+v", row)
	}
}

func TestRecordSwallowsStoreError(t *testing.T) {
	store := &memStore{done: make(chan struct{}), err: errors.New("disk full")}
	sink := New(prometheus.NewRegistry(), store, discardLogger())

	// Must not panic or surface the store failure.
	sink.Record("/items", "GET", time.Millisecond, 500, false, "status 500", 0, 0)

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("store never consulted")
	}

	if got := testutil.ToFloat64(sink.requests.WithLabelValues("/items", "error")); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}
}

func TestRecordWithoutStore(t *testing.T) {
	sink := New(prometheus.NewRegistry(), nil, discardLogger())
	sink.Record("/shop", "GET", time.Millisecond, 200, true, "", 0, 0)

	if got := testutil.ToFloat64(sink.requests.WithLabelValues("/shop", "success")); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}
}
