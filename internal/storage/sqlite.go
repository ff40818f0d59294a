package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ErrDuplicateEntry is returned when a wishlist entry for the same item
// (case-insensitive) already exists for the user.
var ErrDuplicateEntry = errors.New("wishlist entry already exists")

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddWishlistEntry inserts a new entry and populates its ID and AddedAt.
func (s *SQLite) AddWishlistEntry(ctx context.Context, entry *model.WishlistEntry) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO wishlists (user_id, item_name, item_type, item_rarity, price, added_at, last_notified_date)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		entry.UserID, entry.ItemName, entry.ItemType, entry.ItemRarity, entry.Price, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("insert wishlist entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	entry.AddedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// RemoveWishlistEntry deletes a user's entry by item name (case-insensitive).
func (s *SQLite) RemoveWishlistEntry(ctx context.Context, userID, itemName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM wishlists WHERE user_id = ? AND item_name = ? COLLATE NOCASE`,
		userID, itemName,
	)
	if err != nil {
		return fmt.Errorf("delete wishlist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetWishlistsForUser returns one user's entries ordered by insertion.
func (s *SQLite) GetWishlistsForUser(ctx context.Context, userID string) ([]model.WishlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, item_name, item_type, item_rarity, price, added_at, last_notified_date
		 FROM wishlists WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query wishlists: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// GetAllWishlists returns every entry across all users.
func (s *SQLite) GetAllWishlists(ctx context.Context) ([]model.WishlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, item_name, item_type, item_rarity, price, added_at, last_notified_date
		 FROM wishlists ORDER BY user_id, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all wishlists: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// MarkNotified sets last_notified_date for the user's named entries in
// one transaction, so a bundle is marked all-or-nothing.
func (s *SQLite) MarkNotified(ctx context.Context, userID string, itemNames []string, date string) error {
	if len(itemNames) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(itemNames))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(itemNames)+2)
	args = append(args, date, userID)
	for _, name := range itemNames {
		args = append(args, strings.ToLower(name))
	}

	query := fmt.Sprintf(
		`UPDATE wishlists SET last_notified_date = ?
		 WHERE user_id = ? AND lower(item_name) IN (%s)`, placeholders)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return tx.Commit()
}

// GetNotificationPreference reports whether the user wants wishlist
// notifications. Users without a settings row default to enabled.
func (s *SQLite) GetNotificationPreference(ctx context.Context, userID string) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT notifications_enabled FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query notification preference: %w", err)
	}
	return enabled == 1, nil
}

// SetNotificationPreference stores the user's notification toggle.
func (s *SQLite) SetNotificationPreference(ctx context.Context, userID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, notifications_enabled) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET notifications_enabled = excluded.notifications_enabled`,
		userID, boolToInt(enabled),
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// RecordSnapshot upserts the audit row for a shop date. A re-fetch on
// the same day refreshes the counts but never clears an existing posted
// flag.
func (s *SQLite) RecordSnapshot(ctx context.Context, rec model.SnapshotRecord) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shop_history (date, total_items, section_count, raw_sections, fetch_duration_ms, posted, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (date) DO UPDATE SET
		   total_items = excluded.total_items,
		   section_count = excluded.section_count,
		   raw_sections = excluded.raw_sections,
		   fetch_duration_ms = excluded.fetch_duration_ms,
		   posted = max(posted, excluded.posted),
		   recorded_at = excluded.recorded_at`,
		rec.Date, rec.TotalItems, rec.SectionCount, rec.RawSections, rec.FetchDurationMS, boolToInt(rec.Posted), now,
	)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

// MarkPosted flags a shop date's history row after notifications went out.
func (s *SQLite) MarkPosted(ctx context.Context, date string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shop_history SET posted = 1 WHERE date = ?`, date,
	)
	if err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasPostedOn reports whether the daily job already completed for date.
func (s *SQLite) HasPostedOn(ctx context.Context, date string) (bool, error) {
	var posted int
	err := s.db.QueryRowContext(ctx,
		`SELECT posted FROM shop_history WHERE date = ?`, date,
	).Scan(&posted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query posted: %w", err)
	}
	return posted == 1, nil
}

// ListGuildChannels returns configured wishlist channels ordered by
// guild id, which fixes the delivery-target precedence.
func (s *SQLite) ListGuildChannels(ctx context.Context) ([]model.GuildChannel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, channel_id FROM guild_channels ORDER BY guild_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query guild channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var channels []model.GuildChannel
	for rows.Next() {
		var gc model.GuildChannel
		if err := rows.Scan(&gc.GuildID, &gc.ChannelID); err != nil {
			return nil, fmt.Errorf("scan guild channel: %w", err)
		}
		channels = append(channels, gc)
	}
	return channels, rows.Err()
}

// SetGuildChannel configures a guild's wishlist-update channel.
func (s *SQLite) SetGuildChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_channels (guild_id, channel_id) VALUES (?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET channel_id = excluded.channel_id`,
		guildID, channelID,
	)
	if err != nil {
		return fmt.Errorf("set guild channel: %w", err)
	}
	return nil
}

// RemoveGuildChannel drops a guild's wishlist channel configuration.
func (s *SQLite) RemoveGuildChannel(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM guild_channels WHERE guild_id = ?`, guildID)
	if err != nil {
		return fmt.Errorf("remove guild channel: %w", err)
	}
	return nil
}

// InsertRequest appends one upstream request log row.
func (s *SQLite) InsertRequest(ctx context.Context, req model.RequestLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_requests (endpoint, method, duration_ms, status_code, success, error_message, request_bytes, response_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Endpoint, req.Method, req.DurationMS, req.StatusCode, boolToInt(req.Success),
		req.ErrorMessage, req.RequestBytes, req.ResponseBytes, req.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// PruneRequests deletes request log rows older than the cutoff and
// returns how many were removed.
func (s *SQLite) PruneRequests(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_requests WHERE created_at < ?`,
		olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune request logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]model.WishlistEntry, error) {
	var entries []model.WishlistEntry
	for rows.Next() {
		var (
			e        model.WishlistEntry
			addedAt  string
			notified sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemName, &e.ItemType, &e.ItemRarity, &e.Price, &addedAt, &notified); err != nil {
			return nil, fmt.Errorf("scan wishlist entry: %w", err)
		}
		e.AddedAt, _ = time.Parse(timeLayout, addedAt)
		if notified.Valid {
			e.LastNotifiedDate = notified.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
