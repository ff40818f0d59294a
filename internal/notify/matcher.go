// Package notify matches catalog snapshots against user wishlists and
// dispatches at most one notification bundle per user per day.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

// WishlistStore is the durable wishlist collaborator.
type WishlistStore interface {
	GetAllWishlists(ctx context.Context) ([]model.WishlistEntry, error)
	// MarkNotified sets last_notified_date for all of a user's named
	// entries in one transaction.
	MarkNotified(ctx context.Context, userID string, itemNames []string, date string) error
	GetNotificationPreference(ctx context.Context, userID string) (bool, error)
}

// Notifier delivers pre-rendered content; it reports only success or
// failure, never formatting concerns.
type Notifier interface {
	DeliverToChannel(ctx context.Context, channelID, content string) error
	DeliverToDM(ctx context.Context, userID, content string) error
}

// TargetResolver lists, in deterministic guild order, the configured
// wishlist-update channels the user is a member of and the bot can post in.
type TargetResolver interface {
	WishlistChannels(ctx context.Context, userID string) ([]string, error)
}

// Operator is the best-effort alert path for undeliverable bundles.
type Operator interface {
	NotifyOperator(ctx context.Context, message string)
}

// Renderer turns a user's matches into the delivery payload.
type Renderer interface {
	RenderBundle(userID string, matches []Match) string
}

// Match pairs a wishlist entry with the shop item that satisfied it.
type Match struct {
	Entry model.WishlistEntry
	Item  model.Item
}

// Matcher drives one matching-and-dispatch run over a snapshot.
type Matcher struct {
	store    WishlistStore
	resolver TargetResolver
	notifier Notifier
	operator Operator
	renderer Renderer
	log      *slog.Logger

	inFlight atomic.Bool
}

// New creates a Matcher.
func New(store WishlistStore, resolver TargetResolver, notifier Notifier, operator Operator, renderer Renderer, log *slog.Logger) *Matcher {
	return &Matcher{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		operator: operator,
		renderer: renderer,
		log:      log,
	}
}

// ProcessSnapshot matches every wishlist entry against the snapshot and
// dispatches one bundle per user. It returns the number of successful
// dispatches. A run already in progress causes the new trigger to be
// skipped, not queued. Per-user failures are logged and isolated.
func (m *Matcher) ProcessSnapshot(ctx context.Context, snap *model.Snapshot) (int, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.log.Warn("matcher run already in progress, skipping trigger", "snapshot_date", snap.Date)
		return 0, nil
	}
	defer m.inFlight.Store(false)

	entries, err := m.store.GetAllWishlists(ctx)
	if err != nil {
		return 0, fmt.Errorf("load wishlists: %w", err)
	}

	today := model.Today()
	items := flattenItems(snap)

	byUser := make(map[string][]Match)
	for _, entry := range entries {
		// Already-notified entries are excluded before matching so they
		// cost nothing.
		if entry.LastNotifiedDate == today {
			continue
		}
		if item, ok := matchItem(entry.ItemName, items); ok {
			byUser[entry.UserID] = append(byUser[entry.UserID], Match{Entry: entry, Item: item})
		}
	}

	users := make([]string, 0, len(byUser))
	for id := range byUser {
		users = append(users, id)
	}
	sort.Strings(users)

	dispatched := 0
	for _, userID := range users {
		delivered, err := m.dispatchBundle(ctx, userID, byUser[userID], today)
		if err != nil {
			m.log.Error("bundle dispatch failed", "user_id", userID, "matches", len(byUser[userID]), "error", err)
			continue
		}
		if delivered {
			dispatched++
		}
	}

	m.log.Info("matcher run complete",
		"snapshot_date", snap.Date,
		"entries", len(entries),
		"matched_users", len(byUser),
		"dispatched", dispatched)
	return dispatched, nil
}

// dispatchBundle reports whether the bundle was actually delivered;
// a disabled preference is a silent skip, not a delivery.
func (m *Matcher) dispatchBundle(ctx context.Context, userID string, matches []Match, today string) (bool, error) {
	enabled, err := m.store.GetNotificationPreference(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("notification preference: %w", err)
	}
	if !enabled {
		m.log.Debug("notifications disabled, skipping user", "user_id", userID)
		return false, nil
	}

	content := m.renderBundle(userID, matches)

	if err := m.deliver(ctx, userID, content); err != nil {
		m.operator.NotifyOperator(ctx, fmt.Sprintf("wishlist notification for user %s undeliverable: %v", userID, err))
		return false, err
	}

	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match.Entry.ItemName)
	}
	if err := m.store.MarkNotified(ctx, userID, names, today); err != nil {
		// Delivered but not recorded: the user may be notified again
		// tomorrow's run at worst, but surface it loudly.
		m.log.Error("mark notified failed after delivery", "user_id", userID, "error", err)
	}
	return true, nil
}

// deliver tries the first qualifying configured channel, then falls back
// to a direct message.
func (m *Matcher) deliver(ctx context.Context, userID, content string) error {
	channels, err := m.resolver.WishlistChannels(ctx, userID)
	if err != nil {
		m.log.Warn("channel resolution failed, falling back to DM", "user_id", userID, "error", err)
		channels = nil
	}

	if len(channels) > 0 {
		chErr := m.notifier.DeliverToChannel(ctx, channels[0], content)
		if chErr == nil {
			return nil
		}
		m.log.Warn("channel delivery failed, falling back to DM", "user_id", userID, "channel_id", channels[0], "error", chErr)
	}

	if err := m.notifier.DeliverToDM(ctx, userID, content); err != nil {
		return fmt.Errorf("no deliverable target: %w", err)
	}
	return nil
}

// renderBundle guards against renderer panics: formatting must not be
// able to take down a dispatch run.
func (m *Matcher) renderBundle(userID string, matches []Match) (content string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("renderer panicked", "user_id", userID, "panic", r)
			content = fmt.Sprintf("%d of your wishlist items are in the shop today!", len(matches))
		}
	}()
	return m.renderer.RenderBundle(userID, matches)
}

func flattenItems(snap *model.Snapshot) []model.Item {
	items := make([]model.Item, 0, snap.TotalItems)
	for _, sec := range snap.Sections {
		items = append(items, sec.Items...)
	}
	return items
}

// matchItem finds the first shop item satisfying any rule, in order:
// case-insensitive equality, wishlist name contained in the shop name,
// shop name contained in the wishlist name. The bidirectional substring
// semantics are deliberately permissive ("Raven" matches "Ravenous" in
// the second direction) and are pinned by tests.
func matchItem(wishName string, items []model.Item) (model.Item, bool) {
	wish := strings.ToLower(wishName)
	for _, item := range items {
		shop := strings.ToLower(item.Name)
		if shop == "" {
			continue
		}
		if shop == wish || strings.Contains(shop, wish) || strings.Contains(wish, shop) {
			return item, true
		}
	}
	return model.Item{}, false
}
