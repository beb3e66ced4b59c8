package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

// Session is one match between exactly two mark-bound participants.
//
// A session is mutated only by the registry holding its per-session lock; the
// struct itself carries no synchronization.
type Session struct {
	ID      string                  `json:"id"`
	Board   Board                   `json:"board"`
	Players map[Mark]ParticipantRef `json:"players"`
	Turn    Mark                    `json:"player_turn"`
	Status  string                  `json:"status"`

	// Winner is the winning mark once finished, MarkTie for a draw.
	Winner Mark `json:"winner,omitempty"`
	// Surrendered is the mark that gave up, if the game ended that way.
	Surrendered Mark `json:"surrendered,omitempty"`

	// Targets maps each human identity to the opaque render target the
	// transport layer delivers this session's state to. Written by the
	// transport, never interpreted here.
	Targets map[string]string `json:"-"`
}

// NewSession creates an ongoing session with X bound to first and O to second.
// X always opens.
func NewSession(id string, first, second ParticipantRef) *Session {
	return &Session{
		ID:   id,
		Turn: MarkX,
		Players: map[Mark]ParticipantRef{
			MarkX: first,
			MarkO: second,
		},
		Status:  StatusOngoing,
		Targets: make(map[string]string),
	}
}

func (that *Session) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Session) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Session) IsWaiting() bool {
	return that.Status == StatusWaiting
}

// ConfirmOngoing rejects any mutation of a session that is not in progress.
func (that *Session) ConfirmOngoing() error {
	if !that.IsOngoing() {
		return fmt.Errorf("%w: status %s", apperror.ErrGameNotActive, that.Status)
	}
	return nil
}

// MakeTurn marks the cell for mark, evaluates the board and either finishes
// the game or passes the turn to the other mark. State is untouched on error.
func (that *Session) MakeTurn(mark Mark, cell int) error {
	if err := that.ConfirmOngoing(); err != nil {
		return err
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = mark

	switch result := that.Board.Evaluate(); result {
	case MarkX, MarkO, MarkTie:
		that.Winner = result
		that.Status = StatusFinished
		that.Turn = EmptyCell
	default:
		that.Turn = mark.Opponent()
	}

	return nil
}

// Restart resets the board and turn, keeping both bindings and render targets.
func (that *Session) Restart() {
	that.Board = Board{}
	that.Turn = MarkX
	that.Status = StatusOngoing
	that.Winner = EmptyCell
	that.Surrendered = EmptyCell
}

// Surrender finishes the game in favor of mark's opponent.
func (that *Session) Surrender(mark Mark) {
	that.Status = StatusFinished
	that.Winner = mark.Opponent()
	that.Surrendered = mark
	that.Turn = EmptyCell
}

// Reevaluate forces the terminal check against the current board, used to
// recover when an internal invariant was violated. A board with an outcome
// finishes the session; anything else is left untouched.
func (that *Session) Reevaluate() {
	result := that.Board.Evaluate()
	if result == EmptyCell {
		return
	}

	that.Winner = result
	that.Status = StatusFinished
	that.Turn = EmptyCell
}

// Snapshot returns a copy safe to read after the session lock is released,
// used to render committed state without holding up further mutations.
func (that *Session) Snapshot() *Session {
	snapshot := *that

	snapshot.Players = make(map[Mark]ParticipantRef, len(that.Players))
	for mark, player := range that.Players {
		snapshot.Players[mark] = player
	}

	snapshot.Targets = make(map[string]string, len(that.Targets))
	for identity, target := range that.Targets {
		snapshot.Targets[identity] = target
	}

	return &snapshot
}

// ParticipantFor returns the participant bound to mark.
func (that *Session) ParticipantFor(mark Mark) ParticipantRef {
	return that.Players[mark]
}

// MarkOf resolves a human identity to its mark within this session.
func (that *Session) MarkOf(identity string) (Mark, bool) {
	for mark, player := range that.Players {
		if player.IsHuman() && player.Identity == identity {
			return mark, true
		}
	}
	return EmptyCell, false
}

// HasHuman reports whether identity is one of the session's bound humans.
func (that *Session) HasHuman(identity string) bool {
	_, ok := that.MarkOf(identity)
	return ok
}

// HumanIdentities lists the bound human identities, X's owner first.
func (that *Session) HumanIdentities() []string {
	identities := make([]string, 0, 2)
	for _, mark := range []Mark{MarkX, MarkO} {
		if player := that.Players[mark]; player.IsHuman() {
			identities = append(identities, player.Identity)
		}
	}
	return identities
}

// IsWithComputer reports whether one side is the computer opponent.
func (that *Session) IsWithComputer() bool {
	for _, player := range that.Players {
		if player.IsComputer() {
			return true
		}
	}
	return false
}
