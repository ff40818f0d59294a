// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	AddWishlistEntry(ctx context.Context, entry *model.WishlistEntry) error
	RemoveWishlistEntry(ctx context.Context, userID, itemName string) error
	GetWishlistsForUser(ctx context.Context, userID string) ([]model.WishlistEntry, error)
	GetAllWishlists(ctx context.Context) ([]model.WishlistEntry, error)
	MarkNotified(ctx context.Context, userID string, itemNames []string, date string) error

	GetNotificationPreference(ctx context.Context, userID string) (bool, error)
	SetNotificationPreference(ctx context.Context, userID string, enabled bool) error

	RecordSnapshot(ctx context.Context, rec model.SnapshotRecord) error
	MarkPosted(ctx context.Context, date string) error
	HasPostedOn(ctx context.Context, date string) (bool, error)

	ListGuildChannels(ctx context.Context) ([]model.GuildChannel, error)
	SetGuildChannel(ctx context.Context, guildID, channelID string) error
	RemoveGuildChannel(ctx context.Context, guildID string) error

	InsertRequest(ctx context.Context, req model.RequestLog) error
	PruneRequests(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
