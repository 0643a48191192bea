// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRating is the rating every item starts with unless configured otherwise.
const DefaultRating = 1500.0

// itemNamespace scopes name-based item ids so the same phrase always maps to the same id.
var itemNamespace = uuid.MustParse("6f1c2a0e-4b9d-5e3f-8a71-2c5d9e0b7f14")

// Item is one ranked phrase. Values are snapshots; only the rating store mutates
// the authoritative copy.
type Item struct {
	ID          string  // stable unique identifier
	Text        string  // display string, immutable once created
	Rating      float64 // current Elo estimate
	Comparisons int     // votes this item took part in
	Wins        int
	Losses      int
}

// NewItem builds an item with a text-derived id and the given starting rating.
func NewItem(text string, rating float64) Item {
	text = strings.TrimSpace(text)
	return Item{
		ID:     ItemID(text),
		Text:   text,
		Rating: rating,
	}
}

// ItemID returns the stable id for a phrase text.
func ItemID(text string) string {
	return uuid.NewSHA1(itemNamespace, []byte(strings.TrimSpace(text))).String()
}

// Consistent reports whether the counters agree with each other.
func (i Item) Consistent() bool {
	return i.Comparisons == i.Wins+i.Losses && i.Wins >= 0 && i.Losses >= 0
}

// Vote is an ephemeral (winner, loser) report. It is never persisted.
type Vote struct {
	WinnerID string
	LoserID  string
	TS       time.Time
}

// Result captures the post-vote state of both items of an applied vote.
type Result struct {
	Winner Item
	Loser  Item
	Delta  float64 // rating points moved from loser to winner
	TS     time.Time
}

// Pairing is a server-issued offer of two items to one session.
type Pairing struct {
	SessionID string
	A         Item
	B         Item
	IssuedAt  time.Time
}

// Contains reports whether id is one of the two offered items.
func (p Pairing) Contains(id string) bool {
	return id != "" && (p.A.ID == id || p.B.ID == id)
}

// Same reports whether p offers the same unordered pair of ids as a and b.
func (p Pairing) Same(a, b string) bool {
	return (p.A.ID == a && p.B.ID == b) || (p.A.ID == b && p.B.ID == a)
}

// Expired reports whether the pairing is older than ttl at now. A non-positive ttl never expires.
func (p Pairing) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.IssuedAt) > ttl
}
