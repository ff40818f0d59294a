package discord

import (
	"strings"
	"testing"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/notify"
)

func TestRenderBundleSingle(t *testing.T) {
	price := 2000
	got := BundleRenderer{}.RenderBundle("123", []notify.Match{{
		Entry: model.WishlistEntry{UserID: "123", ItemName: "Raven"},
		Item:  model.Item{Name: "Raven", Rarity: "legendary", Price: &price},
	}})

	for _, want := range []string{"<@123>", "An item", "Raven", "legendary", "2000 V-Bucks"} {
		if !strings.Contains(got, want) {
			t.Errorf("message %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "[wishlist:") {
		t.Error("exact-name match should not repeat the wishlist name")
	}
}

func TestRenderBundleMultipleWithPartialMatch(t *testing.T) {
	got := BundleRenderer{}.RenderBundle("123", []notify.Match{
		{
			Entry: model.WishlistEntry{ItemName: "Raven"},
			Item:  model.Item{Name: "Raven Team Leader", Rarity: "epic"},
		},
		{
			Entry: model.WishlistEntry{ItemName: "dark bomber"},
			Item:  model.Item{Name: "Dark Bomber"},
		},
	})

	if !strings.Contains(got, "2 items") {
		t.Errorf("message %q missing bundle count", got)
	}
	if !strings.Contains(got, "[wishlist: Raven]") {
		t.Errorf("message %q missing the wishlist name for a partial match", got)
	}
	if strings.Contains(got, "[wishlist: dark bomber]") {
		t.Error("case-only difference should not repeat the wishlist name")
	}
}
