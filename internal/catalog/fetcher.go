// Package catalog produces normalized, enriched snapshots of the daily
// item shop from the upstream providers.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/cache"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/remote"
)

const (
	// detailBatchSize bounds concurrent detail lookups per batch.
	detailBatchSize = 10
	// interBatchDelay is the pause between detail batches, keeping the
	// burst rate under the providers' informal limits.
	interBatchDelay = 250 * time.Millisecond
)

// ErrUnavailable means no snapshot could be produced: the listing call
// failed and neither a stale cached listing nor a previous in-memory
// snapshot exists.
var ErrUnavailable = errors.New("catalog unavailable")

// HistoryStore persists one audit row per successful fetch.
type HistoryStore interface {
	RecordSnapshot(ctx context.Context, rec model.SnapshotRecord) error
}

// Config holds the fetcher's provider endpoints and freshness bounds.
type Config struct {
	ShopAPIURL  string
	FNBRAPIURL  string
	FNBRAPIKey  string // empty disables enrichment
	TTL         time.Duration
	MaxStaleAge time.Duration
	Timeout     time.Duration
	Retries     uint
}

// Fetcher orchestrates the remote client and result cache into catalog
// snapshots.
type Fetcher struct {
	client  *remote.Client
	cache   *cache.Cache
	history HistoryStore
	log     *slog.Logger
	cfg     Config
	limiter *rate.Limiter

	mu      sync.Mutex
	current *model.Snapshot
}

// New creates a Fetcher. history may be nil to skip audit records.
func New(client *remote.Client, c *cache.Cache, history HistoryStore, log *slog.Logger, cfg Config) *Fetcher {
	return &Fetcher{
		client:  client,
		cache:   c,
		history: history,
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(interBatchDelay), 1),
	}
}

// Current returns the latest in-memory snapshot, or nil before the
// first successful fetch.
func (f *Fetcher) Current() *model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Shop returns a catalog snapshot. With force=false a snapshot younger
// than the catalog TTL is returned as-is without any network call.
// Failure of the listing call falls back to a stale cached listing and
// then to the last in-memory snapshot before giving up with
// ErrUnavailable.
func (f *Fetcher) Shop(ctx context.Context, force bool) (*model.Snapshot, error) {
	if !force {
		if cur := f.Current(); cur != nil && time.Since(cur.FetchedAt) <= f.cfg.TTL {
			return cur, nil
		}
	}

	start := time.Now()

	shop, err := f.fetchListing(ctx)
	if err != nil {
		if cur := f.Current(); cur != nil {
			f.log.Warn("shop listing failed, serving last snapshot", "snapshot_date", cur.Date, "error", err)
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snap := f.buildSnapshot(ctx, shop)
	f.enrich(ctx, snap)
	snap.FetchedAt = time.Now().UTC()

	f.recordHistory(ctx, snap, time.Since(start))

	f.mu.Lock()
	f.current = snap
	f.mu.Unlock()

	f.log.Info("shop snapshot built",
		"date", snap.Date,
		"sections", len(snap.Sections),
		"items", snap.TotalItems,
		"duration_ms", time.Since(start).Milliseconds())
	return snap, nil
}

// fetchListing fetches and decodes the top-level shop listing. On
// upstream failure a stale cached listing within MaxStaleAge is decoded
// instead; the cache is only written on a fully valid fresh response.
func (f *Fetcher) fetchListing(ctx context.Context) (*apiShop, error) {
	endpoint := f.cfg.ShopAPIURL + "/shop"
	params := url.Values{"lang": {"en"}}
	fp := cache.Fingerprint(endpoint, params)

	body, fetchErr := f.client.Fetch(ctx, endpoint, params, nil, remote.Policy{Retries: f.cfg.Retries, Timeout: f.cfg.Timeout})
	if fetchErr == nil {
		shop, err := decodeListing(body)
		if err == nil {
			f.cache.Put(fp, body, f.cfg.TTL)
			return shop, nil
		}
		fetchErr = err
	}

	if stale, ok := f.cache.GetStale(fp, f.cfg.MaxStaleAge); ok {
		shop, err := decodeListing(stale)
		if err == nil {
			f.log.Warn("shop listing failed, serving stale cache", "error", fetchErr)
			return shop, nil
		}
	}
	return nil, fetchErr
}

func decodeListing(body []byte) (*apiShop, error) {
	data, err := decodeEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("shop listing: %w", err)
	}
	var shop apiShop
	if err := json.Unmarshal(data, &shop); err != nil {
		return nil, fmt.Errorf("decode shop listing: %w", err)
	}
	return &shop, nil
}

// buildSnapshot resolves every listing entry to full item details in
// fixed-size concurrent batches and assembles the snapshot. A failed
// detail lookup degrades to the listing entry's own fields.
func (f *Fetcher) buildSnapshot(ctx context.Context, shop *apiShop) *model.Snapshot {
	details := f.resolveDetails(ctx, shop)

	snap := &model.Snapshot{Date: shop.Date}
	if snap.Date == "" {
		snap.Date = model.Today()
	}
	for _, sec := range shop.Sections {
		section := model.Section{Name: sec.Name, Items: make([]model.Item, 0, len(sec.Entries))}
		for _, entry := range sec.Entries {
			section.Items = append(section.Items, normalizeItem(entry, details[entry.ID]))
		}
		snap.TotalItems += len(section.Items)
		snap.Sections = append(snap.Sections, section)
	}
	return snap
}

func (f *Fetcher) resolveDetails(ctx context.Context, shop *apiShop) map[string]*apiItem {
	var ids []string
	seen := make(map[string]bool)
	for _, sec := range shop.Sections {
		for _, entry := range sec.Entries {
			if entry.ID != "" && !seen[entry.ID] {
				seen[entry.ID] = true
				ids = append(ids, entry.ID)
			}
		}
	}

	details := make(map[string]*apiItem, len(ids))
	var mu sync.Mutex

	for i := 0; i < len(ids); i += detailBatchSize {
		if err := f.limiter.Wait(ctx); err != nil {
			return details
		}

		end := min(i+detailBatchSize, len(ids))

		var wg sync.WaitGroup
		for _, id := range ids[i:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				detail, err := f.fetchDetail(ctx, id)
				if err != nil {
					f.log.Warn("item detail lookup failed", "item_id", id, "error", err)
					return
				}
				mu.Lock()
				details[id] = detail
				mu.Unlock()
			}(id)
		}
		wg.Wait()
	}
	return details
}

// fetchDetail resolves one item id, consulting the result cache before
// the network so repeated fetches inside the TTL window are free.
func (f *Fetcher) fetchDetail(ctx context.Context, id string) (*apiItem, error) {
	endpoint := f.cfg.ShopAPIURL + "/items/" + id
	fp := cache.Fingerprint(endpoint, nil)

	body, ok := f.cache.Get(fp)
	if !ok {
		var err error
		body, err = f.client.Fetch(ctx, endpoint, nil, nil, remote.Policy{Retries: f.cfg.Retries, Timeout: f.cfg.Timeout})
		if err != nil {
			return nil, err
		}
	}

	data, err := decodeEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", id, err)
	}
	var item apiItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}

	if !ok {
		f.cache.Put(fp, body, f.cfg.TTL)
	}
	return &item, nil
}

// enrich augments snapshot items with shop-rotation history from the
// secondary provider. Strictly best-effort: an unconfigured key or any
// per-item failure leaves items unenriched and never fails the fetch.
func (f *Fetcher) enrich(ctx context.Context, snap *model.Snapshot) {
	if f.cfg.FNBRAPIKey == "" {
		f.log.Debug("enrichment disabled, no API key configured")
		return
	}

	header := http.Header{}
	header.Set("x-api-key", f.cfg.FNBRAPIKey)

	for si := range snap.Sections {
		for ii := range snap.Sections[si].Items {
			item := &snap.Sections[si].Items[ii]
			if item.Name == "" {
				continue
			}

			h, err := f.fetchHistory(ctx, item.Name, header)
			if err != nil {
				f.log.Debug("enrichment lookup failed", "item", item.Name, "error", err)
				continue
			}
			applyHistory(item, h)
		}
	}
}

func (f *Fetcher) fetchHistory(ctx context.Context, name string, header http.Header) (apiHistory, error) {
	endpoint := f.cfg.FNBRAPIURL + "/stats"
	params := url.Values{"name": {name}}
	fp := cache.Fingerprint(endpoint, params)

	body, ok := f.cache.Get(fp)
	if !ok {
		var err error
		body, err = f.client.Fetch(ctx, endpoint, params, header, remote.Policy{Timeout: f.cfg.Timeout})
		if err != nil {
			return apiHistory{}, err
		}
	}

	data, err := decodeEnvelope(body)
	if err != nil {
		return apiHistory{}, err
	}
	var h apiHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return apiHistory{}, fmt.Errorf("decode history: %w", err)
	}

	if !ok {
		f.cache.Put(fp, body, f.cfg.TTL)
	}
	return h, nil
}

func (f *Fetcher) recordHistory(ctx context.Context, snap *model.Snapshot, fetchDuration time.Duration) {
	if f.history == nil {
		return
	}
	raw, err := rawSections(snap.Sections)
	if err != nil {
		f.log.Error("encode snapshot history", "error", err)
		return
	}
	rec := model.SnapshotRecord{
		Date:            snap.Date,
		TotalItems:      snap.TotalItems,
		SectionCount:    len(snap.Sections),
		RawSections:     raw,
		FetchDurationMS: fetchDuration.Milliseconds(),
	}
	if err := f.history.RecordSnapshot(ctx, rec); err != nil {
		f.log.Error("record snapshot history", "date", snap.Date, "error", err)
	}
}
