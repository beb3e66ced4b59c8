package matchmaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-arena/internal/registry"
)

const maxCodeAttempts = 5

// WaitingEntry is a pending quick-match request: the first participant to ask
// for an opponent within a scope holds the scope's single slot.
type WaitingEntry struct {
	Scope     string
	Identity  string
	Target    string
	CreatedAt time.Time
}

// Invitation is a directed offer from inviter to a hinted invitee. Delivery of
// the hint is the transport's concern; the engine only tracks the record.
type Invitation struct {
	ID          string
	Inviter     string
	InviteeHint string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// OpenGame is a join-by-code slot created by one participant and consumed by
// whoever presents the code first.
type OpenGame struct {
	Code      string
	Creator   string
	Target    string
	CreatedAt time.Time
}

// Matchmaker resolves how two participants become bound into one session. All
// three protocols converge on the registry's atomic pairing; the matchmaker's
// own lock makes every take-or-insert on a slot a single indivisible step.
type Matchmaker struct {
	mu          sync.Mutex
	queue       map[string]*WaitingEntry
	invitations map[string]*Invitation
	open        map[string]*OpenGame

	registry      *registry.Registry
	invitationTTL time.Duration
	now           func() time.Time
}

func New(reg *registry.Registry, invitationTTL time.Duration) *Matchmaker {
	return &Matchmaker{
		queue:       make(map[string]*WaitingEntry),
		invitations: make(map[string]*Invitation),
		open:        make(map[string]*OpenGame),

		registry:      reg,
		invitationTTL: invitationTTL,
		now:           time.Now,
	}
}

// RequestQuickMatch either consumes the scope's waiting slot and pairs the two
// participants, or inserts identity as the scope's waiter. On pairing it
// returns the session and the consumed entry; while waiting both are nil.
//
// Two racing requesters for the same scope serialize on the matchmaker lock:
// exactly one finds the other's entry and creates the single session.
func (that *Matchmaker) RequestQuickMatch(identity, scope, target string) (*entity.Session, *WaitingEntry, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.registry.InGame(identity) {
		return nil, nil, fmt.Errorf("%w: participant %s", apperror.ErrAlreadyInGame, identity)
	}

	entry, ok := that.queue[scope]
	if ok && entry.Identity == identity {
		return nil, nil, fmt.Errorf("%w: scope %s", apperror.ErrAlreadyWaiting, scope)
	}

	// a waiter that started another game meanwhile holds a stale slot
	if ok && that.registry.InGame(entry.Identity) {
		delete(that.queue, scope)
		entry, ok = nil, false
	}

	if !ok {
		that.queue[scope] = &WaitingEntry{
			Scope:     scope,
			Identity:  identity,
			Target:    target,
			CreatedAt: that.now(),
		}
		return nil, nil, nil
	}

	session, err := that.registry.CreatePaired(entity.Human(entry.Identity), entity.Human(identity))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pair quick match: %w", err)
	}

	delete(that.queue, scope)

	return session, entry, nil
}

// CancelQuickMatch withdraws identity's waiting slot in scope.
func (that *Matchmaker) CancelQuickMatch(identity, scope string) (*WaitingEntry, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.queue[scope]
	if !ok || entry.Identity != identity {
		return nil, fmt.Errorf("%w: no waiting entry for scope %s", apperror.ErrUnknownAction, scope)
	}

	delete(that.queue, scope)

	return entry, nil
}

// Invite creates an invitation with an expiry. The invitee hint is opaque:
// resolving and delivering it is up to the transport.
func (that *Matchmaker) Invite(inviter, inviteeHint string) (*Invitation, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.registry.InGame(inviter) {
		return nil, fmt.Errorf("%w: participant %s", apperror.ErrAlreadyInGame, inviter)
	}

	now := that.now()
	invitation := &Invitation{
		ID:          uuid.NewString(),
		Inviter:     inviter,
		InviteeHint: inviteeHint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(that.invitationTTL),
	}
	that.invitations[invitation.ID] = invitation

	return invitation, nil
}

// Respond settles an invitation. A decline consumes it and returns a nil
// session. An accept pairs inviter and responder; if either side now holds a
// live session the accept fails and the invitation stays pending until expiry.
func (that *Matchmaker) Respond(invitationID, responder string, accept bool) (*Invitation, *entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	invitation, ok := that.invitations[invitationID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: id %s", apperror.ErrInvitationNotFound, invitationID)
	}

	if that.now().After(invitation.ExpiresAt) {
		delete(that.invitations, invitationID)
		return nil, nil, fmt.Errorf("%w: id %s expired", apperror.ErrInvitationNotFound, invitationID)
	}

	if !accept {
		delete(that.invitations, invitationID)
		return invitation, nil, nil
	}

	session, err := that.registry.CreatePaired(entity.Human(invitation.Inviter), entity.Human(responder))
	if err != nil {
		return invitation, nil, fmt.Errorf("failed to pair invitation: %w", err)
	}

	delete(that.invitations, invitationID)

	return invitation, session, nil
}

// CancelInvitation withdraws a pending invitation; only its inviter may.
func (that *Matchmaker) CancelInvitation(invitationID, inviter string) (*Invitation, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	invitation, ok := that.invitations[invitationID]
	if !ok || invitation.Inviter != inviter {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrInvitationNotFound, invitationID)
	}

	delete(that.invitations, invitationID)

	return invitation, nil
}

// CreateOpenGame registers a join-by-code slot and returns it.
func (that *Matchmaker) CreateOpenGame(creator, target string) (*OpenGame, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.registry.InGame(creator) {
		return nil, fmt.Errorf("%w: participant %s", apperror.ErrAlreadyInGame, creator)
	}

	for _, game := range that.open {
		if game.Creator == creator {
			return nil, fmt.Errorf("%w: open game %s", apperror.ErrAlreadyWaiting, game.Code)
		}
	}

	code, err := that.newCode()
	if err != nil {
		return nil, err
	}

	game := &OpenGame{
		Code:      code,
		Creator:   creator,
		Target:    target,
		CreatedAt: that.now(),
	}
	that.open[code] = game

	return game, nil
}

// JoinOpenGame consumes the slot behind code and pairs creator and joiner.
func (that *Matchmaker) JoinOpenGame(code, joiner string) (*OpenGame, *entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.open[code]
	if !ok {
		return nil, nil, fmt.Errorf("%w: code %s", apperror.ErrCodeNotFound, code)
	}

	if game.Creator == joiner {
		return nil, nil, apperror.ErrCannotJoinOwnGame
	}

	if that.registry.InGame(game.Creator) {
		delete(that.open, code)
		return nil, nil, fmt.Errorf("%w: code %s is stale", apperror.ErrCodeNotFound, code)
	}

	session, err := that.registry.CreatePaired(entity.Human(game.Creator), entity.Human(joiner))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pair open game: %w", err)
	}

	delete(that.open, code)

	return game, session, nil
}

// CancelOpenGame withdraws creator's open slot.
func (that *Matchmaker) CancelOpenGame(creator string) (*OpenGame, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for code, game := range that.open {
		if game.Creator == creator {
			delete(that.open, code)
			return game, nil
		}
	}

	return nil, fmt.Errorf("%w: no open game for participant %s", apperror.ErrCodeNotFound, creator)
}

// PruneExpired removes invitations past their expiry and returns them so the
// caller can let the inviters know nobody answered.
func (that *Matchmaker) PruneExpired() []*Invitation {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()

	var expired []*Invitation
	for id, invitation := range that.invitations {
		if now.After(invitation.ExpiresAt) {
			expired = append(expired, invitation)
			delete(that.invitations, id)
		}
	}

	return expired
}

// newCode draws codes until one is free. Must be called holding mu.
func (that *Matchmaker) newCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := pkg.GenerateGameID()
		if err != nil {
			return "", fmt.Errorf("failed to generate game code: %w", err)
		}

		if _, taken := that.open[code]; !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: game code collisions after %d attempts", apperror.ErrTransient, maxCodeAttempts)
}
