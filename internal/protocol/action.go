package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

// Every interactive control carries a token of the form <scope>_<verb>, where
// scope is a session id or one of the fixed keywords below. The token is
// parsed once here, at the boundary, into a typed Action; nothing past this
// package ever splits strings.
const (
	ScopeSingle     = "single"
	ScopeMulti      = "multi"
	ScopeJoin       = "join"
	ScopeQuickMatch = "quickmatch"

	verbNew       = "new"
	verbCancel    = "cancel"
	verbRestart   = "restart"
	verbSurrender = "surrender"
	verbAccept    = "accept"
	verbDecline   = "decline"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindCell
	KindRestart
	KindSurrender
	KindNewSolo
	KindQuickMatch
	KindCancelQuickMatch
	KindAcceptInvitation
	KindDeclineInvitation
	KindNewOpenGame
	KindCancelOpenGame
	KindJoinByCode
)

// Action is the typed form of one token. Only the fields relevant to its Kind
// are set.
type Action struct {
	Kind         Kind
	SessionID    string
	Cell         int
	InvitationID string
	Code         string
}

// Parse decodes a token. Any token that does not fit the grammar is rejected
// with ErrUnknownAction; resolving the ids it carries is the engine's job.
func Parse(token string) (Action, error) {
	scope, verb, ok := strings.Cut(token, "_")
	if !ok || scope == "" || verb == "" {
		return Action{}, fmt.Errorf("%w: token %q", apperror.ErrUnknownAction, token)
	}

	switch scope {
	case ScopeSingle:
		if verb == verbNew {
			return Action{Kind: KindNewSolo}, nil
		}
	case ScopeQuickMatch:
		switch verb {
		case verbNew:
			return Action{Kind: KindQuickMatch}, nil
		case verbCancel:
			return Action{Kind: KindCancelQuickMatch}, nil
		}
	case ScopeMulti:
		response, invitationID, split := strings.Cut(verb, "_")
		if split && invitationID != "" {
			switch response {
			case verbAccept:
				return Action{Kind: KindAcceptInvitation, InvitationID: invitationID}, nil
			case verbDecline:
				return Action{Kind: KindDeclineInvitation, InvitationID: invitationID}, nil
			}
		}
	case ScopeJoin:
		switch verb {
		case verbNew:
			return Action{Kind: KindNewOpenGame}, nil
		case verbCancel:
			return Action{Kind: KindCancelOpenGame}, nil
		default:
			return Action{Kind: KindJoinByCode, Code: verb}, nil
		}
	default:
		return parseSessionAction(scope, verb, token)
	}

	return Action{}, fmt.Errorf("%w: token %q", apperror.ErrUnknownAction, token)
}

func parseSessionAction(sessionID, verb, token string) (Action, error) {
	switch verb {
	case verbRestart:
		return Action{Kind: KindRestart, SessionID: sessionID}, nil
	case verbSurrender:
		return Action{Kind: KindSurrender, SessionID: sessionID}, nil
	}

	// cell moves carry the bare index; range validation is the session's job
	cell, err := strconv.Atoi(verb)
	if err != nil {
		return Action{}, fmt.Errorf("%w: token %q", apperror.ErrUnknownAction, token)
	}

	return Action{Kind: KindCell, SessionID: sessionID, Cell: cell}, nil
}

// Token encoders, used by the render layer when building keyboards.

func CellToken(sessionID string, cell int) string {
	return fmt.Sprintf("%s_%d", sessionID, cell)
}

func RestartToken(sessionID string) string {
	return sessionID + "_" + verbRestart
}

func SurrenderToken(sessionID string) string {
	return sessionID + "_" + verbSurrender
}

func NewSoloToken() string {
	return ScopeSingle + "_" + verbNew
}

func QuickMatchToken() string {
	return ScopeQuickMatch + "_" + verbNew
}

func CancelQuickMatchToken() string {
	return ScopeQuickMatch + "_" + verbCancel
}

func AcceptToken(invitationID string) string {
	return ScopeMulti + "_" + verbAccept + "_" + invitationID
}

func DeclineToken(invitationID string) string {
	return ScopeMulti + "_" + verbDecline + "_" + invitationID
}

func NewOpenGameToken() string {
	return ScopeJoin + "_" + verbNew
}

func CancelOpenGameToken() string {
	return ScopeJoin + "_" + verbCancel
}

func JoinByCodeToken(code string) string {
	return ScopeJoin + "_" + code
}
