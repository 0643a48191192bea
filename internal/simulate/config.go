// Package simulate drives concurrent websocket voters against a running
// server and then checks the leaderboard for consistency.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Voters        int           // Concurrent websocket sessions
	VotesPerVoter int           // Votes each session casts
	Noise         float64       // Probability a voter goes against the shared preference
	Timeout       time.Duration // Per-request and per-frame timeout
	Seed          uint64        // Seed for voter noise
	ReportFile    string        // Optional JSON report path
	Verbose       bool          // Log every rejected vote
}

// Entry mirrors the leaderboard entry served by GET /leaderboard.
type Entry struct {
	Rank        int     `json:"rank"`
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Rating      float64 `json:"rating"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Comparisons int     `json:"comparisons"`
}

// Stats holds run statistics.
type Stats struct {
	VotesSent     int64         `json:"votesSent"`
	VotesAccepted int64         `json:"votesAccepted"`
	VotesRejected int64         `json:"votesRejected"`
	PairsReceived int64         `json:"pairsReceived"`
	Errors        int64         `json:"errors"`
	Items         int           `json:"items"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	Duration      time.Duration `json:"duration"`
}
