package apperror

import "errors"

// Conflict: the request clashes with existing matchmaking or session state.
var (
	ErrAlreadyInGame     = errors.New("participant is already in a game")
	ErrAlreadyWaiting    = errors.New("participant is already waiting for an opponent")
	ErrCannotJoinOwnGame = errors.New("cannot join your own game")
)

// NotFound: the request carries a stale or unknown token.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrCodeNotFound       = errors.New("game code not found")
	ErrUnknownAction      = errors.New("unknown action")
)

// Precondition: the session exists but rejects the request.
var (
	ErrGameNotActive   = errors.New("game is not active")
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrInvalidCell     = errors.New("invalid cell index")
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrNotAParticipant = errors.New("not a participant of this game")
)

var (
	// ErrNoLegalMove means the bot was asked to move on a full board. The board
	// evaluation runs before the bot is consulted, so hitting this is a defect.
	ErrNoLegalMove = errors.New("no legal move available")

	// ErrTransient aborts a single request that ran out of a bounded resource,
	// such as session-id generation retries. The caller may simply retry.
	ErrTransient = errors.New("transient failure, please retry")
)

// Notice translates an engine error into the short text shown to the user.
// Unknown errors collapse into a generic notice so internals never leak outward.
func Notice(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyInGame):
		return "You're already in a game! Finish or surrender it first."
	case errors.Is(err, ErrAlreadyWaiting):
		return "You're already waiting for an opponent."
	case errors.Is(err, ErrCannotJoinOwnGame):
		return "You can't play against yourself!"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrGameNotActive):
		return "Game not found or ended!"
	case errors.Is(err, ErrInvitationNotFound):
		return "This invitation is no longer valid."
	case errors.Is(err, ErrCodeNotFound):
		return "No open game with that code."
	case errors.Is(err, ErrUnknownAction):
		return "That action is no longer available."
	case errors.Is(err, ErrNotYourTurn):
		return "It's not your turn!"
	case errors.Is(err, ErrInvalidCell), errors.Is(err, ErrCellOccupied):
		return "Invalid move!"
	case errors.Is(err, ErrNotAParticipant):
		return "You're not in this game!"
	default:
		return "Something went wrong, please try again."
	}
}
