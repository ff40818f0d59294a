package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

// apiEnvelope is the common wrapper both upstream providers use. The
// body carries its own status code which must be checked in addition to
// the HTTP status.
type apiEnvelope struct {
	Status int             `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// decodeEnvelope unwraps a provider response body, failing when the
// body-level status is not 200.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status != 200 {
		if env.Error != "" {
			return nil, fmt.Errorf("provider status %d: %s", env.Status, env.Error)
		}
		return nil, fmt.Errorf("provider status %d", env.Status)
	}
	return env.Data, nil
}

// apiShop is the shop listing payload.
type apiShop struct {
	Date     string       `json:"date"`
	Sections []apiSection `json:"sections"`
}

type apiSection struct {
	Name    string     `json:"name"`
	Entries []apiEntry `json:"entries"`
}

// apiEntry is one listing row: the item id plus whatever summary fields
// the listing happens to include.
type apiEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FinalPrice *int   `json:"finalPrice"`
}

// apiItem is the detail payload for one item. Most fields are optional;
// normalizeItem owns the precedence rules.
type apiItem struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Type   apiNamed  `json:"type"`
	Rarity apiNamed  `json:"rarity"`
	Price  *int      `json:"price"`
	Images apiImages `json:"images"`
}

// apiNamed accepts both the nested {"value": "outfit"} shape and a flat
// string, which the providers have used interchangeably across versions.
type apiNamed struct {
	Value string `json:"value"`
}

func (n *apiNamed) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Value)
	}
	type plain apiNamed
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	n.Value = p.Value
	return nil
}

type apiImages struct {
	Icon     string `json:"icon"`
	Featured string `json:"featured"`
	Small    string `json:"smallIcon"`
}

// apiHistory is the enrichment payload: when the item was last rotated
// through the shop.
type apiHistory struct {
	FirstSeen string `json:"firstSeen"`
	LastSeen  string `json:"lastSeen"`
}

// normalizeItem builds the domain item from a listing entry and its
// optional detail payload. Precedence, decided once here rather than
// per call site: detail name over listing name, detail price over
// listing final price, icon over featured over small image.
func normalizeItem(entry apiEntry, detail *apiItem) model.Item {
	item := model.Item{
		ID:    entry.ID,
		Name:  entry.Name,
		Price: entry.FinalPrice,
	}
	if detail == nil {
		return item
	}

	if detail.Name != "" {
		item.Name = detail.Name
	}
	item.Type = detail.Type.Value
	item.Rarity = detail.Rarity.Value
	if detail.Price != nil {
		item.Price = detail.Price
	}
	switch {
	case detail.Images.Icon != "":
		item.IconURL = detail.Images.Icon
	case detail.Images.Featured != "":
		item.IconURL = detail.Images.Featured
	default:
		item.IconURL = detail.Images.Small
	}
	return item
}

// applyHistory copies parsed enrichment dates onto an item, ignoring
// fields the provider left empty or malformed.
func applyHistory(item *model.Item, h apiHistory) {
	if t, err := time.Parse(model.DateLayout, h.FirstSeen); err == nil {
		item.FirstSeen = &t
	}
	if t, err := time.Parse(model.DateLayout, h.LastSeen); err == nil {
		item.LastSeen = &t
	}
}

// rawSections serializes snapshot sections for the history store.
func rawSections(sections []model.Section) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(sections); err != nil {
		return "", fmt.Errorf("encode sections: %w", err)
	}
	return buf.String(), nil
}
