package matchmaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/registry"
)

const testTTL = 2 * time.Minute

func newMatchmaker() (*Matchmaker, *registry.Registry) {
	reg := registry.New()
	return New(reg, testTTL), reg
}

func TestMatchmaker_RequestQuickMatch(t *testing.T) {
	t.Run("First requester waits", func(t *testing.T) {
		// Given: an empty queue
		mm, _ := newMatchmaker()

		// When: alice requests a quick match
		session, entry, err := mm.RequestQuickMatch("alice", "room1", "alice")

		// Then: she holds the scope's waiting slot
		require.NoError(t, err)
		assert.Nil(t, session)
		assert.Nil(t, entry)
	})

	t.Run("Second requester pairs with the waiter", func(t *testing.T) {
		// Given: alice is waiting in room1
		mm, reg := newMatchmaker()
		_, _, err := mm.RequestQuickMatch("alice", "room1", "alice")
		require.NoError(t, err)

		// When: bob requests a quick match in the same scope
		session, entry, err := mm.RequestQuickMatch("bob", "room1", "bob")

		// Then: one session binds both, the consumed entry is returned
		require.NoError(t, err)
		require.NotNil(t, session)
		require.NotNil(t, entry)
		assert.Equal(t, "alice", entry.Identity)
		assert.Equal(t, entity.Human("alice"), session.ParticipantFor(entity.MarkX))
		assert.Equal(t, entity.Human("bob"), session.ParticipantFor(entity.MarkO))
		assert.True(t, reg.InGame("alice"))
		assert.True(t, reg.InGame("bob"))
	})

	t.Run("Scopes are independent", func(t *testing.T) {
		// Given: alice waits in room1
		mm, _ := newMatchmaker()
		_, _, err := mm.RequestQuickMatch("alice", "room1", "alice")
		require.NoError(t, err)

		// When: bob requests in room2
		session, _, err := mm.RequestQuickMatch("bob", "room2", "bob")

		// Then: he waits instead of pairing across scopes
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("Error when already waiting in the scope", func(t *testing.T) {
		mm, _ := newMatchmaker()
		_, _, err := mm.RequestQuickMatch("alice", "room1", "alice")
		require.NoError(t, err)

		_, _, err = mm.RequestQuickMatch("alice", "room1", "alice")

		require.ErrorIs(t, err, apperror.ErrAlreadyWaiting)
	})

	t.Run("Error when already in a game", func(t *testing.T) {
		mm, reg := newMatchmaker()
		_, err := reg.CreateSolo(entity.Human("alice"))
		require.NoError(t, err)

		_, _, err = mm.RequestQuickMatch("alice", "room1", "alice")

		require.ErrorIs(t, err, apperror.ErrAlreadyInGame)
	})

	t.Run("Stale slot of a waiter who started a game is replaced", func(t *testing.T) {
		// Given: alice waited, then started a solo game anyway
		mm, reg := newMatchmaker()
		_, _, err := mm.RequestQuickMatch("alice", "room1", "alice")
		require.NoError(t, err)
		_, err = reg.CreateSolo(entity.Human("alice"))
		require.NoError(t, err)

		// When: bob requests a quick match
		session, _, err := mm.RequestQuickMatch("bob", "room1", "bob")

		// Then: the stale slot is discarded and bob waits
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("Two concurrent requesters produce exactly one session", func(t *testing.T) {
		// Given: two racing requesters for the same scope
		mm, reg := newMatchmaker()

		var wg sync.WaitGroup
		results := make([]*entity.Session, 2)
		identities := []string{"alice", "bob"}

		for i, identity := range identities {
			i, identity := i, identity
			wg.Add(1)
			go func() {
				defer wg.Done()
				session, _, err := mm.RequestQuickMatch(identity, "room1", identity)
				require.NoError(t, err)
				results[i] = session
			}()
		}
		wg.Wait()

		// Then: exactly one of them observed the pairing
		paired := 0
		for _, session := range results {
			if session != nil {
				paired++
			}
		}
		assert.Equal(t, 1, paired)

		// Then: both are bound to the same session and nobody is left waiting
		aliceSession, err := reg.ByParticipant("alice")
		require.NoError(t, err)
		bobSession, err := reg.ByParticipant("bob")
		require.NoError(t, err)
		assert.Same(t, aliceSession, bobSession)
		assert.Empty(t, mm.queue)
	})
}

func TestMatchmaker_CancelQuickMatch(t *testing.T) {
	t.Run("Withdraws the caller's slot", func(t *testing.T) {
		mm, _ := newMatchmaker()
		_, _, err := mm.RequestQuickMatch("alice", "room1", "alice")
		require.NoError(t, err)

		entry, err := mm.CancelQuickMatch("alice", "room1")

		require.NoError(t, err)
		assert.Equal(t, "alice", entry.Identity)
		assert.Empty(t, mm.queue)
	})

	t.Run("Error when not waiting", func(t *testing.T) {
		mm, _ := newMatchmaker()

		_, err := mm.CancelQuickMatch("alice", "room1")

		require.ErrorIs(t, err, apperror.ErrUnknownAction)
	})

	t.Run("Error when the slot belongs to someone else", func(t *testing.T) {
		mm, _ := newMatchmaker()
		_, _, err := mm.RequestQuickMatch("alice", "room1", "alice")
		require.NoError(t, err)

		_, err = mm.CancelQuickMatch("bob", "room1")

		require.ErrorIs(t, err, apperror.ErrUnknownAction)
	})
}

func TestMatchmaker_Invitations(t *testing.T) {
	t.Run("Accept pairs inviter and responder", func(t *testing.T) {
		// Given: an invitation from alice to bob
		mm, reg := newMatchmaker()
		invitation, err := mm.Invite("alice", "bob")
		require.NoError(t, err)
		require.NotEmpty(t, invitation.ID)

		// When: bob accepts
		accepted, session, err := mm.Respond(invitation.ID, "bob", true)

		// Then: the invitation is consumed and both are in one session
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, invitation.ID, accepted.ID)
		assert.True(t, reg.InGame("alice"))
		assert.True(t, reg.InGame("bob"))
		assert.Empty(t, mm.invitations)
	})

	t.Run("Decline consumes the invitation without pairing", func(t *testing.T) {
		mm, reg := newMatchmaker()
		invitation, err := mm.Invite("alice", "bob")
		require.NoError(t, err)

		declined, session, err := mm.Respond(invitation.ID, "bob", false)

		require.NoError(t, err)
		assert.Nil(t, session)
		assert.Equal(t, "alice", declined.Inviter)
		assert.False(t, reg.InGame("alice"))
		assert.Empty(t, mm.invitations)
	})

	t.Run("Error on unknown invitation", func(t *testing.T) {
		mm, _ := newMatchmaker()

		_, _, err := mm.Respond("nope", "bob", true)

		require.ErrorIs(t, err, apperror.ErrInvitationNotFound)
	})

	t.Run("Accept after expiry fails InvitationNotFound", func(t *testing.T) {
		// Given: an invitation past its TTL
		mm, _ := newMatchmaker()
		now := time.Now()
		mm.now = func() time.Time { return now }

		invitation, err := mm.Invite("alice", "bob")
		require.NoError(t, err)

		now = now.Add(testTTL + time.Second)

		// When: bob accepts too late
		_, _, err = mm.Respond(invitation.ID, "bob", true)

		// Then: the invitation is gone
		require.ErrorIs(t, err, apperror.ErrInvitationNotFound)
		assert.Empty(t, mm.invitations)
	})

	t.Run("Accept while responder is in a game leaves the inviter untouched", func(t *testing.T) {
		// Given: bob joined another game after being invited
		mm, reg := newMatchmaker()
		invitation, err := mm.Invite("alice", "bob")
		require.NoError(t, err)
		_, err = reg.CreateSolo(entity.Human("bob"))
		require.NoError(t, err)

		// When: bob accepts anyway
		_, _, err = mm.Respond(invitation.ID, "bob", true)

		// Then: the accept is rejected and alice remains free
		require.ErrorIs(t, err, apperror.ErrAlreadyInGame)
		assert.False(t, reg.InGame("alice"))
	})

	t.Run("Inviter may cancel a pending invitation", func(t *testing.T) {
		mm, _ := newMatchmaker()
		invitation, err := mm.Invite("alice", "bob")
		require.NoError(t, err)

		cancelled, err := mm.CancelInvitation(invitation.ID, "alice")

		require.NoError(t, err)
		assert.Equal(t, "bob", cancelled.InviteeHint)
		assert.Empty(t, mm.invitations)
	})

	t.Run("Only the inviter may cancel", func(t *testing.T) {
		mm, _ := newMatchmaker()
		invitation, err := mm.Invite("alice", "bob")
		require.NoError(t, err)

		_, err = mm.CancelInvitation(invitation.ID, "mallory")

		require.ErrorIs(t, err, apperror.ErrInvitationNotFound)
	})
}

func TestMatchmaker_OpenGames(t *testing.T) {
	t.Run("Join by code pairs creator and joiner", func(t *testing.T) {
		// Given: alice opened a game
		mm, reg := newMatchmaker()
		game, err := mm.CreateOpenGame("alice", "alice")
		require.NoError(t, err)
		require.Len(t, game.Code, 6)

		// When: bob joins with the code
		joined, session, err := mm.JoinOpenGame(game.Code, "bob")

		// Then: the slot is consumed and both are paired
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "alice", joined.Creator)
		assert.True(t, reg.InGame("alice"))
		assert.True(t, reg.InGame("bob"))
		assert.Empty(t, mm.open)
	})

	t.Run("Error joining your own game", func(t *testing.T) {
		mm, _ := newMatchmaker()
		game, err := mm.CreateOpenGame("alice", "alice")
		require.NoError(t, err)

		_, _, err = mm.JoinOpenGame(game.Code, "alice")

		require.ErrorIs(t, err, apperror.ErrCannotJoinOwnGame)
	})

	t.Run("Error on unknown code", func(t *testing.T) {
		mm, _ := newMatchmaker()

		_, _, err := mm.JoinOpenGame("ZZZZZZ", "bob")

		require.ErrorIs(t, err, apperror.ErrCodeNotFound)
	})

	t.Run("Error opening a second game", func(t *testing.T) {
		mm, _ := newMatchmaker()
		_, err := mm.CreateOpenGame("alice", "alice")
		require.NoError(t, err)

		_, err = mm.CreateOpenGame("alice", "alice")

		require.ErrorIs(t, err, apperror.ErrAlreadyWaiting)
	})

	t.Run("Creator may cancel the open slot", func(t *testing.T) {
		mm, _ := newMatchmaker()
		game, err := mm.CreateOpenGame("alice", "alice")
		require.NoError(t, err)

		cancelled, err := mm.CancelOpenGame("alice")

		require.NoError(t, err)
		assert.Equal(t, game.Code, cancelled.Code)
		assert.Empty(t, mm.open)
	})
}

func TestMatchmaker_PruneExpired(t *testing.T) {
	// Given: one expired and one fresh invitation
	mm, _ := newMatchmaker()
	now := time.Now()
	mm.now = func() time.Time { return now }

	expired, err := mm.Invite("alice", "bob")
	require.NoError(t, err)

	now = now.Add(testTTL / 2)
	fresh, err := mm.Invite("carol", "dave")
	require.NoError(t, err)

	// When: pruning after the first invitation's TTL elapsed
	now = now.Add(testTTL/2 + time.Second)
	pruned := mm.PruneExpired()

	// Then: only the expired one is removed and returned
	require.Len(t, pruned, 1)
	assert.Equal(t, expired.ID, pruned[0].ID)

	_, ok := mm.invitations[fresh.ID]
	assert.True(t, ok)
}
