package entity

import "time"

// GameResult is the archived record of one finished match. Unlike Session it
// is a plain value meant for storage: nothing in the engine reads it back into
// live state.
type GameResult struct {
	SessionID   string                  `json:"session_id"`
	Players     map[Mark]ParticipantRef `json:"players"`
	Winner      Mark                    `json:"winner,omitempty"`
	Surrendered Mark                    `json:"surrendered,omitempty"`
	FinishedAt  time.Time               `json:"finished_at"`
}

// ResultOf captures a finished session's outcome.
func ResultOf(session *Session, finishedAt time.Time) *GameResult {
	players := make(map[Mark]ParticipantRef, len(session.Players))
	for mark, player := range session.Players {
		players[mark] = player
	}

	return &GameResult{
		SessionID:   session.ID,
		Players:     players,
		Winner:      session.Winner,
		Surrendered: session.Surrendered,
		FinishedAt:  finishedAt,
	}
}

// IsDraw reports whether the match ended without a winner.
func (that *GameResult) IsDraw() bool {
	return that.Winner == MarkTie
}
