package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/internal/domain/types"
)

// Inbound events.
const (
	EventRequestPair          = "request_pair"
	EventVote                 = "vote"
	EventRequestLeaderboard   = "request_leaderboard"
	EventSubscribeLeaderboard = "subscribe_leaderboard"
)

// Outbound events.
const (
	EventNewPair           = "new_pair"
	EventLeaderboardUpdate = "leaderboard_update"
	EventVoteRejected      = "vote_rejected"
	EventError             = "error"
)

var (
	errMalformed    = errors.New("malformed message")
	errUnknownEvent = errors.New("unknown event")
)

var validate = validator.New()

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NewPair offers two phrases to vote on.
type NewPair struct {
	Phrase1 string `json:"phrase1"`
	Phrase2 string `json:"phrase2"`
	ID1     string `json:"id1"`
	ID2     string `json:"id2"`
}

// LeaderboardUpdate carries [text, rating] rows in rank order.
type LeaderboardUpdate struct {
	Leaderboard [][2]any `json:"leaderboard"`
}

// VoteRejected explains why a vote was not applied.
type VoteRejected struct {
	Reason string `json:"reason"`
}

// ErrorMessage reports a request that could not be served.
type ErrorMessage struct {
	Message string `json:"message"`
}

// VotePayload is the data of a vote event. Winner and loser are item ids or
// phrase texts.
type VotePayload struct {
	Winner string `json:"winner" validate:"required,max=2048"`
	Loser  string `json:"loser" validate:"required,max=2048"`
}

func encode(event string, data any) ([]byte, error) {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

func newPairMessage(p model.Pairing) NewPair {
	return NewPair{Phrase1: p.A.Text, Phrase2: p.B.Text, ID1: p.A.ID, ID2: p.B.ID}
}

// leaderboardMessage renders up to limit entries; wire ratings are whole numbers.
func leaderboardMessage(entries []types.Entry, limit int) LeaderboardUpdate {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	rows := make([][2]any, len(entries))
	for i, e := range entries {
		rows[i] = [2]any{e.Text, int64(math.Round(e.Rating))}
	}
	return LeaderboardUpdate{Leaderboard: rows}
}

// peekEvent returns the event name without decoding the whole frame.
func peekEvent(msg []byte) (string, error) {
	if !gjson.ValidBytes(msg) {
		return "", errMalformed
	}
	ev := gjson.GetBytes(msg, "event")
	if ev.Type != gjson.String || ev.Str == "" {
		return "", errMalformed
	}
	return ev.Str, nil
}

// decodeVote extracts and validates the vote payload.
func decodeVote(msg []byte) (VotePayload, error) {
	data := gjson.GetBytes(msg, "data")
	if !data.IsObject() {
		return VotePayload{}, fmt.Errorf("%w: vote data must be an object", errMalformed)
	}
	var v VotePayload
	if err := json.Unmarshal([]byte(data.Raw), &v); err != nil {
		return VotePayload{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if err := validate.Struct(v); err != nil {
		return VotePayload{}, formatValidationError(err)
	}
	return v, nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", errMalformed, strings.Join(msgs, "; "))
}
