package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
)

const maxIDAttempts = 5

// Registry owns every live session and the mapping from human identity to the
// session it is currently bound to. It is the sole writer of both maps and
// guarantees that no identity is ever active in two sessions at once.
//
// Sessions themselves are mutated only through Mutate, which serializes all
// operations on one session while letting distinct sessions proceed in
// parallel.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entity.Session
	active   map[string]string
	locks    map[string]*sync.Mutex
	finished map[string]time.Time

	now func() time.Time
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*entity.Session),
		active:   make(map[string]string),
		locks:    make(map[string]*sync.Mutex),
		finished: make(map[string]time.Time),
		now:      time.Now,
	}
}

// CreateSolo binds human to X against the computer and registers the session.
func (that *Registry) CreateSolo(human entity.ParticipantRef) (*entity.Session, error) {
	return that.create(human, entity.ComputerPlayer())
}

// CreatePaired binds first to X and second to O and registers both mappings.
func (that *Registry) CreatePaired(first, second entity.ParticipantRef) (*entity.Session, error) {
	return that.create(first, second)
}

func (that *Registry) create(first, second entity.ParticipantRef) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, player := range []entity.ParticipantRef{first, second} {
		if !player.IsHuman() {
			continue
		}
		if bound, ok := that.active[player.Identity]; ok {
			return nil, fmt.Errorf("%w: participant %s is bound to session %s", apperror.ErrAlreadyInGame, player.Identity, bound)
		}
	}

	id, err := that.newSessionID()
	if err != nil {
		return nil, err
	}

	session := entity.NewSession(id, first, second)
	that.sessions[id] = session
	that.locks[id] = &sync.Mutex{}
	for _, identity := range session.HumanIdentities() {
		that.active[identity] = id
	}

	return session, nil
}

// newSessionID draws ids until one is free. Must be called holding mu.
func (that *Registry) newSessionID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := pkg.GenerateGameID()
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}

		if _, taken := that.sessions[id]; !taken {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: session id collisions after %d attempts", apperror.ErrTransient, maxIDAttempts)
}

// BySession returns the session with the given id, finished ones included.
func (that *Registry) BySession(id string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrSessionNotFound, id)
	}

	return session, nil
}

// ByParticipant returns the session identity is actively bound to.
func (that *Registry) ByParticipant(identity string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	id, ok := that.active[identity]
	if !ok {
		return nil, fmt.Errorf("%w: participant %s has no active session", apperror.ErrSessionNotFound, identity)
	}

	return that.sessions[id], nil
}

// InGame reports whether identity is bound to a live session.
func (that *Registry) InGame(identity string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.active[identity]
	return ok
}

// Mutate runs fn holding the session's mutation lock and then aligns the
// participant bindings with the resulting status: a session fn finished is
// unbound from its humans before the lock is given up, so they become eligible
// for new games as part of the same step.
func (that *Registry) Mutate(id string, fn func(session *entity.Session) error) error {
	that.mu.Lock()
	session, ok := that.sessions[id]
	lock := that.locks[id]
	that.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: id %s", apperror.ErrSessionNotFound, id)
	}

	lock.Lock()
	defer lock.Unlock()

	err := fn(session)
	that.reconcile(session)

	return err
}

// Rebind re-registers a session's humans as active, used when a finished game
// restarts. Fails if any of them moved on to another session in the meantime.
// Safe to call from inside a Mutate fn.
func (that *Registry) Rebind(session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, identity := range session.HumanIdentities() {
		if bound, ok := that.active[identity]; ok && bound != session.ID {
			return fmt.Errorf("%w: participant %s is bound to session %s", apperror.ErrAlreadyInGame, identity, bound)
		}
	}

	for _, identity := range session.HumanIdentities() {
		that.active[identity] = session.ID
	}

	return nil
}

func (that *Registry) reconcile(session *entity.Session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !session.IsFinished() {
		delete(that.finished, session.ID)
		return
	}

	for _, identity := range session.HumanIdentities() {
		if that.active[identity] == session.ID {
			delete(that.active, identity)
		}
	}

	if _, done := that.finished[session.ID]; !done {
		that.finished[session.ID] = that.now()
	}
}

// Release removes the participant mappings of an abandoned session. The
// session record is retained for late renders and restarts until dropped.
func (that *Registry) Release(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for identity, bound := range that.active {
		if bound == id {
			delete(that.active, identity)
		}
	}

	if _, ok := that.sessions[id]; ok {
		if _, done := that.finished[id]; !done {
			that.finished[id] = that.now()
		}
	}
}

// Drop removes the session record itself. No-op for unknown ids.
func (that *Registry) Drop(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.drop(id)
}

func (that *Registry) drop(id string) {
	delete(that.sessions, id)
	delete(that.locks, id)
	delete(that.finished, id)

	for identity, bound := range that.active {
		if bound == id {
			delete(that.active, identity)
		}
	}
}

// PruneFinished drops finished sessions that have been terminal for longer
// than maxAge and returns how many were removed. A restarted session is no
// longer terminal and is left alone.
func (that *Registry) PruneFinished(maxAge time.Duration) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	cutoff := that.now().Add(-maxAge)

	pruned := 0
	for id, finishedAt := range that.finished {
		if finishedAt.Before(cutoff) {
			that.drop(id)
			pruned++
		}
	}

	return pruned
}
