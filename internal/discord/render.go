package discord

import (
	"fmt"
	"strings"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/notify"
)

// BundleRenderer formats a user's matches as a plain-text Discord message.
type BundleRenderer struct{}

// RenderBundle builds the notification text for one user's bundle.
func (BundleRenderer) RenderBundle(userID string, matches []notify.Match) string {
	var b strings.Builder
	if len(matches) == 1 {
		fmt.Fprintf(&b, "<@%s> An item from your wishlist is in the shop today!\n", userID)
	} else {
		fmt.Fprintf(&b, "<@%s> %d items from your wishlist are in the shop today!\n", userID, len(matches))
	}

	for _, m := range matches {
		b.WriteString("\n- ")
		b.WriteString(m.Item.Name)
		if m.Item.Rarity != "" {
			fmt.Fprintf(&b, " (%s)", m.Item.Rarity)
		}
		if m.Item.Price != nil {
			fmt.Fprintf(&b, " for %d V-Bucks", *m.Item.Price)
		}
		if !strings.EqualFold(m.Entry.ItemName, m.Item.Name) {
			fmt.Fprintf(&b, " [wishlist: %s]", m.Entry.ItemName)
		}
	}
	return b.String()
}
