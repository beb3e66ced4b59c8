package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/matchmaker"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-arena/internal/registry"
)

const recentResultsLimit = 5

type gameArchive interface {
	SaveResult(ctx context.Context, result *entity.GameResult) error
	RecentResults(ctx context.Context, identity string, limit int) ([]*entity.GameResult, error)
}

// GamePlay orchestrates one inbound action end to end: it resolves the action
// against the matchmaker or the bound session, applies the mutation under the
// registry's locks, and only then pushes renders through the notifier. A slow
// or failing notification never rolls back a committed mutation.
type GamePlay struct {
	logger *slog.Logger

	registry   *registry.Registry
	matchmaker *matchmaker.Matchmaker
	botService BotService
	notifier   Notifier
	archive    gameArchive
	scheduler  *Scheduler

	botDelay time.Duration
}

func NewGamePlay(
	logger *slog.Logger,
	reg *registry.Registry,
	mm *matchmaker.Matchmaker,
	botService BotService,
	notifier Notifier,
	archive gameArchive,
	botDelay time.Duration,
) *GamePlay {
	return &GamePlay{
		logger: logger,

		registry:   reg,
		matchmaker: mm,
		botService: botService,
		notifier:   notifier,
		archive:    archive,
		scheduler:  NewScheduler(),

		botDelay: botDelay,
	}
}

// Dispatch routes one parsed action. Engine errors are translated into a short
// user notice here and still returned so the transport can log them.
func (that *GamePlay) Dispatch(ctx context.Context, identity, scope, target string, action protocol.Action) error {
	var err error

	switch action.Kind {
	case protocol.KindNewSolo:
		err = that.StartSolo(ctx, identity, target)
	case protocol.KindQuickMatch:
		err = that.QuickMatch(ctx, identity, scope, target)
	case protocol.KindCancelQuickMatch:
		err = that.CancelQuickMatch(ctx, identity, scope, target)
	case protocol.KindAcceptInvitation:
		err = that.RespondInvitation(ctx, action.InvitationID, identity, true, target)
	case protocol.KindDeclineInvitation:
		err = that.RespondInvitation(ctx, action.InvitationID, identity, false, target)
	case protocol.KindNewOpenGame:
		err = that.CreateOpenGame(ctx, identity, target)
	case protocol.KindCancelOpenGame:
		err = that.CancelOpenGame(ctx, identity)
	case protocol.KindJoinByCode:
		err = that.JoinOpenGame(ctx, action.Code, identity, target)
	case protocol.KindCell:
		err = that.MakeTurn(ctx, identity, action.SessionID, action.Cell, target)
	case protocol.KindRestart:
		err = that.Restart(ctx, identity, action.SessionID, target)
	case protocol.KindSurrender:
		err = that.Surrender(ctx, identity, action.SessionID, target)
	default:
		err = fmt.Errorf("%w: kind %d", apperror.ErrUnknownAction, action.Kind)
	}

	if err != nil {
		that.notify(ctx, identity, apperror.Notice(err))
	}

	return err
}

// ShowMenu renders the game-mode menu.
func (that *GamePlay) ShowMenu(ctx context.Context, target string) {
	that.render(ctx, target, menuView())
}

// StartSolo creates a game against the computer. The human opens as X.
func (that *GamePlay) StartSolo(ctx context.Context, identity, target string) error {
	session, err := that.registry.CreateSolo(entity.Human(identity))
	if err != nil {
		return fmt.Errorf("failed to create solo game: %w", err)
	}

	snapshot, err := that.bindTargets(session.ID, map[string]string{identity: target})
	if err != nil {
		return err
	}

	that.renderSession(ctx, snapshot)

	return nil
}

// QuickMatch pairs identity with the scope's waiting participant, or leaves
// identity waiting when the slot is free.
func (that *GamePlay) QuickMatch(ctx context.Context, identity, scope, target string) error {
	session, entry, err := that.matchmaker.RequestQuickMatch(identity, scope, target)
	if err != nil {
		return fmt.Errorf("failed to request quick match: %w", err)
	}

	if session == nil {
		that.render(ctx, target, waitingView())
		return nil
	}

	that.dismiss(ctx, entry.Target)

	snapshot, err := that.bindTargets(session.ID, map[string]string{
		entry.Identity: entry.Target,
		identity:       target,
	})
	if err != nil {
		return err
	}

	that.renderSession(ctx, snapshot)

	return nil
}

// CancelQuickMatch withdraws identity's waiting slot.
func (that *GamePlay) CancelQuickMatch(ctx context.Context, identity, scope, target string) error {
	entry, err := that.matchmaker.CancelQuickMatch(identity, scope)
	if err != nil {
		return fmt.Errorf("failed to cancel quick match: %w", err)
	}

	that.dismiss(ctx, entry.Target)
	that.notify(ctx, identity, "You left the quick match queue.")

	if target != entry.Target {
		that.dismiss(ctx, target)
	}

	return nil
}

// Invite creates a directed invitation. The invitee's render target is
// resolved by the transport; when it could not resolve one, the invitation
// still exists and only the confirmation is delivered.
func (that *GamePlay) Invite(ctx context.Context, inviter, inviteeHint, inviteeTarget string) error {
	invitation, err := that.matchmaker.Invite(inviter, inviteeHint)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	if inviteeTarget != "" {
		that.render(ctx, inviteeTarget, invitationView(invitation.ID, inviter))
	}

	that.notify(ctx, inviter, fmt.Sprintf("Invitation sent to %s.", inviteeHint))

	return nil
}

// RespondInvitation settles an invitation from the responder's side.
func (that *GamePlay) RespondInvitation(ctx context.Context, invitationID, responder string, accept bool, target string) error {
	invitation, session, err := that.matchmaker.Respond(invitationID, responder, accept)
	if err != nil {
		return fmt.Errorf("failed to respond to invitation: %w", err)
	}

	if session == nil {
		that.dismiss(ctx, target)
		that.notify(ctx, invitation.Inviter, fmt.Sprintf("%s declined your invitation.", responder))
		return nil
	}

	snapshot, err := that.bindTargets(session.ID, map[string]string{responder: target})
	if err != nil {
		return err
	}

	that.renderSession(ctx, snapshot)

	return nil
}

// CancelInvitation withdraws a pending invitation.
func (that *GamePlay) CancelInvitation(ctx context.Context, invitationID, inviter string) error {
	invitation, err := that.matchmaker.CancelInvitation(invitationID, inviter)
	if err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}

	that.notify(ctx, inviter, fmt.Sprintf("Invitation to %s cancelled.", invitation.InviteeHint))

	return nil
}

// CreateOpenGame registers a join-by-code slot and shows the code.
func (that *GamePlay) CreateOpenGame(ctx context.Context, identity, target string) error {
	game, err := that.matchmaker.CreateOpenGame(identity, target)
	if err != nil {
		return fmt.Errorf("failed to create open game: %w", err)
	}

	that.render(ctx, target, openGameView(game.Code))

	return nil
}

// CancelOpenGame withdraws identity's open slot.
func (that *GamePlay) CancelOpenGame(ctx context.Context, identity string) error {
	game, err := that.matchmaker.CancelOpenGame(identity)
	if err != nil {
		return fmt.Errorf("failed to cancel open game: %w", err)
	}

	that.dismiss(ctx, game.Target)
	that.notify(ctx, identity, "Open game cancelled.")

	return nil
}

// JoinOpenGame consumes the code's slot and starts the match.
func (that *GamePlay) JoinOpenGame(ctx context.Context, code, identity, target string) error {
	game, session, err := that.matchmaker.JoinOpenGame(strings.ToUpper(code), identity)
	if err != nil {
		return fmt.Errorf("failed to join open game: %w", err)
	}

	that.dismiss(ctx, game.Target)

	snapshot, err := that.bindTargets(session.ID, map[string]string{
		game.Creator: game.Target,
		identity:     target,
	})
	if err != nil {
		return err
	}

	that.renderSession(ctx, snapshot)

	return nil
}

// MakeTurn applies a human move and, when the turn passes to the computer,
// schedules the deferred computer reply.
func (that *GamePlay) MakeTurn(ctx context.Context, identity, sessionID string, cell int, target string) error {
	var snapshot *entity.Session

	err := that.registry.Mutate(sessionID, func(session *entity.Session) error {
		mark, ok := session.MarkOf(identity)
		if !ok {
			return apperror.ErrNotAParticipant
		}

		if err := session.MakeTurn(mark, cell); err != nil {
			return err
		}

		if target != "" {
			session.Targets[identity] = target
		}
		snapshot = session.Snapshot()

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to make turn: %w", err)
	}

	that.afterMutation(ctx, snapshot)

	return nil
}

// Restart resets a finished or in-progress game, keeping its bindings. The
// participants are re-registered as active; if one of them moved on to another
// game in the meantime the restart is rejected untouched.
func (that *GamePlay) Restart(ctx context.Context, identity, sessionID, target string) error {
	var snapshot *entity.Session

	err := that.registry.Mutate(sessionID, func(session *entity.Session) error {
		if !session.HasHuman(identity) {
			return apperror.ErrNotAParticipant
		}

		if session.IsWaiting() {
			return fmt.Errorf("%w: status %s", apperror.ErrGameNotActive, session.Status)
		}

		if err := that.registry.Rebind(session); err != nil {
			return err
		}

		session.Restart()

		if target != "" {
			session.Targets[identity] = target
		}
		snapshot = session.Snapshot()

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to restart game: %w", err)
	}

	that.scheduler.Cancel(sessionID)
	that.afterMutation(ctx, snapshot)

	return nil
}

// Surrender finishes the game in the opponent's favor.
func (that *GamePlay) Surrender(ctx context.Context, identity, sessionID, target string) error {
	var snapshot *entity.Session

	err := that.registry.Mutate(sessionID, func(session *entity.Session) error {
		mark, ok := session.MarkOf(identity)
		if !ok {
			return apperror.ErrNotAParticipant
		}

		if err := session.ConfirmOngoing(); err != nil {
			return err
		}

		session.Surrender(mark)

		if target != "" {
			session.Targets[identity] = target
		}
		snapshot = session.Snapshot()

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to surrender: %w", err)
	}

	that.afterMutation(ctx, snapshot)

	return nil
}

// RecentResults delivers identity's latest archived outcomes as a notice.
func (that *GamePlay) RecentResults(ctx context.Context, identity string) error {
	results, err := that.archive.RecentResults(ctx, identity, recentResultsLimit)
	if err != nil {
		return fmt.Errorf("failed to load recent results: %w", err)
	}

	if len(results) == 0 {
		that.notify(ctx, identity, "No finished games yet.")
		return nil
	}

	lines := make([]string, 0, len(results)+1)
	lines = append(lines, "Your recent games:")
	for _, result := range results {
		lines = append(lines, resultLine(result, identity))
	}

	that.notify(ctx, identity, strings.Join(lines, "\n"))

	return nil
}

// ExpireInvitations removes overdue invitations and tells their inviters.
func (that *GamePlay) ExpireInvitations(ctx context.Context) {
	for _, invitation := range that.matchmaker.PruneExpired() {
		that.notify(ctx, invitation.Inviter, fmt.Sprintf("Your invitation to %s expired.", invitation.InviteeHint))
	}
}

// Stop cancels all pending computer moves, used on shutdown.
func (that *GamePlay) Stop() {
	that.scheduler.Stop()
}

// afterMutation runs the shared post-commit steps: render, archive terminal
// outcomes, schedule the computer's reply.
func (that *GamePlay) afterMutation(ctx context.Context, snapshot *entity.Session) {
	that.renderSession(ctx, snapshot)

	if snapshot.IsFinished() {
		that.scheduler.Cancel(snapshot.ID)
		that.archiveResult(ctx, snapshot)
		return
	}

	if snapshot.ParticipantFor(snapshot.Turn).IsComputer() {
		that.scheduleComputerTurn(snapshot.ID)
	}
}

func (that *GamePlay) scheduleComputerTurn(sessionID string) {
	that.scheduler.Schedule(sessionID, that.botDelay, func() {
		that.computerTurn(sessionID)
	})
}

// computerTurn is the deferred computer move. It re-validates its own
// preconditions under the session lock, so a timer that outlived a surrender
// or restart is a harmless no-op.
func (that *GamePlay) computerTurn(sessionID string) {
	ctx := context.Background()
	log := that.logger.With("method", "computerTurn", "sessionID", sessionID)

	var snapshot *entity.Session

	err := that.registry.Mutate(sessionID, func(session *entity.Session) error {
		if err := session.ConfirmOngoing(); err != nil {
			return err
		}

		if !session.ParticipantFor(session.Turn).IsComputer() {
			return apperror.ErrNotYourTurn
		}

		cell, err := that.botService.ChooseCell(session.Board, session.Turn)
		if err != nil {
			// should be unreachable: a full board has an outcome before the
			// bot is asked to move; force the terminal check and bail out
			session.Reevaluate()
			snapshot = session.Snapshot()
			return err
		}

		if err = session.MakeTurn(session.Turn, cell); err != nil {
			return fmt.Errorf("computer failed to make turn: %w", err)
		}

		snapshot = session.Snapshot()

		return nil
	})

	switch {
	case err == nil:
		that.afterMutation(ctx, snapshot)
	case errors.Is(err, apperror.ErrNoLegalMove):
		log.Error("bot asked to move on a full board", "error", err)
		if snapshot != nil {
			that.afterMutation(ctx, snapshot)
		}
	case errors.Is(err, apperror.ErrGameNotActive),
		errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrSessionNotFound):
		// stale timer: the session moved on before the delay elapsed
		log.Debug("skipping stale computer move", "reason", err)
	default:
		log.Error("failed to apply computer move", "error", err)
	}
}

// bindTargets records where each participant's renders go and returns a
// snapshot for rendering.
func (that *GamePlay) bindTargets(sessionID string, targets map[string]string) (*entity.Session, error) {
	var snapshot *entity.Session

	err := that.registry.Mutate(sessionID, func(session *entity.Session) error {
		for identity, target := range targets {
			if target != "" {
				session.Targets[identity] = target
			}
		}

		snapshot = session.Snapshot()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind render targets: %w", err)
	}

	return snapshot, nil
}

// renderSession pushes the committed state to every bound human. Identities
// without a recorded target are addressed directly; transports that key
// targets by identity pick these up, others drop them.
func (that *GamePlay) renderSession(ctx context.Context, snapshot *entity.Session) {
	for _, identity := range snapshot.HumanIdentities() {
		target := snapshot.Targets[identity]
		if target == "" {
			target = identity
		}

		that.render(ctx, target, gameView(snapshot, identity))
	}
}

func (that *GamePlay) archiveResult(ctx context.Context, snapshot *entity.Session) {
	result := entity.ResultOf(snapshot, time.Now())

	if err := that.archive.SaveResult(ctx, result); err != nil {
		that.logger.Error("failed to archive game result", "sessionID", snapshot.ID, "error", err)
	}
}

func (that *GamePlay) render(ctx context.Context, target string, view RenderView) {
	if err := that.notifier.Render(ctx, target, view); err != nil {
		that.logger.Error("failed to render view", "target", target, "error", err)
	}
}

func (that *GamePlay) notify(ctx context.Context, identity, text string) {
	if err := that.notifier.Notify(ctx, identity, text); err != nil {
		that.logger.Error("failed to notify participant", "identity", identity, "error", err)
	}
}

func (that *GamePlay) dismiss(ctx context.Context, target string) {
	if err := that.notifier.Dismiss(ctx, target); err != nil {
		that.logger.Error("failed to dismiss view", "target", target, "error", err)
	}
}
