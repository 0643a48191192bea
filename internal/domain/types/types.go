// Package types contains common types used across the application
package types

import "github.com/okian/duel/internal/domain/model"

// Entry represents a leaderboard entry
type Entry struct {
	Rank        int     `json:"rank"`
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Rating      float64 `json:"rating"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Comparisons int     `json:"comparisons"`
}

// EntryFrom copies an item into an entry with the given rank.
func EntryFrom(rank int, it model.Item) Entry {
	return Entry{
		Rank:        rank,
		ID:          it.ID,
		Text:        it.Text,
		Rating:      it.Rating,
		Wins:        it.Wins,
		Losses:      it.Losses,
		Comparisons: it.Comparisons,
	}
}

// AssignDenseRanks numbers entries already in canonical order. Entries with
// equal ratings share a rank and the next distinct rating takes rank+1.
// start is the rank of the first entry.
func AssignDenseRanks(entries []Entry, start int) {
	if len(entries) == 0 {
		return
	}
	rank := start
	entries[0].Rank = rank
	for i := 1; i < len(entries); i++ {
		if entries[i].Rating != entries[i-1].Rating {
			rank++
		}
		entries[i].Rank = rank
	}
}
