// Package model defines the domain types used across the application.
package model

import "time"

// DateLayout is the calendar-day format used for shop dates and
// notification dedup. All dates are UTC; the shop rotates at 00:00 UTC.
const DateLayout = "2006-01-02"

// Today returns the current UTC calendar day in DateLayout.
func Today() string {
	return time.Now().UTC().Format(DateLayout)
}

// Item is a single catalog entry. Items are constructed during
// enrichment and never mutated once their snapshot is built.
type Item struct {
	ID        string
	Name      string
	Type      string
	Rarity    string
	Price     *int // V-Bucks; nil when the upstream omits it
	IconURL   string
	FirstSeen *time.Time
	LastSeen  *time.Time
}

// Section is a named grouping of shop items, owned by its snapshot.
type Section struct {
	Name  string
	Items []Item
}

// Snapshot is one immutable point-in-time view of the item shop.
// A refresh produces a new Snapshot; the previous one is never mutated.
type Snapshot struct {
	Date       string // DateLayout
	Sections   []Section
	TotalItems int
	FetchedAt  time.Time
}

// WishlistEntry is a user's standing request to be notified when a
// named item shows up in the shop. ItemName keeps the user's original
// casing; matching is case-insensitive.
type WishlistEntry struct {
	ID               int64
	UserID           string
	ItemName         string
	ItemType         string
	ItemRarity       string
	Price            *int
	AddedAt          time.Time
	LastNotifiedDate string // DateLayout, empty if never notified
}

// SnapshotRecord is the durable audit row written for every successful
// shop fetch. RawSections holds the section data as JSON.
type SnapshotRecord struct {
	Date            string
	TotalItems      int
	SectionCount    int
	RawSections     string
	FetchDurationMS int64
	Posted          bool
}

// GuildChannel is a guild's configured wishlist-update channel.
type GuildChannel struct {
	GuildID   string
	ChannelID string
}

// RequestLog is one recorded upstream API request.
type RequestLog struct {
	Endpoint      string
	Method        string
	DurationMS    int64
	StatusCode    int
	Success       bool
	ErrorMessage  string
	RequestBytes  int64
	ResponseBytes int64
	CreatedAt     time.Time
}
