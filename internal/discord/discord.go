// Package discord adapts notification delivery to the Discord API:
// channel and DM sends, delivery-target resolution, and operator alerts.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

// ChannelStore lists the configured wishlist-update channels in
// deterministic guild order.
type ChannelStore interface {
	ListGuildChannels(ctx context.Context) ([]model.GuildChannel, error)
}

// Client wraps a discordgo session.
type Client struct {
	session    *discordgo.Session
	channels   ChannelStore
	operatorID string
	log        *slog.Logger
}

// New creates a Client for the given bot token. The gateway connection
// is not opened until Open is called.
func New(token string, channels ChannelStore, operatorID string, log *slog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Client{
		session:    session,
		channels:   channels,
		operatorID: operatorID,
		log:        log,
	}, nil
}

// Open connects to the Discord gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// DeliverToChannel posts pre-rendered content to a guild channel.
func (c *Client) DeliverToChannel(ctx context.Context, channelID, content string) error {
	if _, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

// DeliverToDM opens (or reuses) the user's DM channel and posts content
// there. Fails when the user blocks DMs from the bot.
func (c *Client) DeliverToDM(ctx context.Context, userID, content string) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, err)
	}
	if _, err := c.session.ChannelMessageSend(dm.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send DM to %s: %w", userID, err)
	}
	return nil
}

// WishlistChannels returns the configured channels the user is a member
// of and the bot can post in, in guild-id order. Guilds the bot can no
// longer see are skipped, not errors.
func (c *Client) WishlistChannels(ctx context.Context, userID string) ([]string, error) {
	configured, err := c.channels.ListGuildChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}

	var eligible []string
	for _, gc := range configured {
		if _, err := c.session.GuildMember(gc.GuildID, userID, discordgo.WithContext(ctx)); err != nil {
			continue
		}
		perms, err := c.session.UserChannelPermissions(c.botID(), gc.ChannelID)
		if err != nil || perms&discordgo.PermissionSendMessages == 0 {
			continue
		}
		eligible = append(eligible, gc.ChannelID)
	}
	return eligible, nil
}

// NotifyOperator DMs the configured operator. Best-effort: failures are
// only logged, since this path is itself the failure path.
func (c *Client) NotifyOperator(ctx context.Context, message string) {
	if c.operatorID == "" {
		c.log.Warn("operator alert dropped, no operator configured", "message", message)
		return
	}
	if err := c.DeliverToDM(ctx, c.operatorID, message); err != nil {
		c.log.Error("operator alert failed", "message", message, "error", err)
	}
}

func (c *Client) botID() string {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}
