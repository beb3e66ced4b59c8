package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
)

func (that *Server) handleMessage(ctx context.Context, identity string, msg *Message) error {
	switch msg.Action {
	case actionMenu:
		that.game.ShowMenu(ctx, identity)
		return nil
	case actionGameAction:
		return that.handleGameAction(ctx, identity, msg)
	case actionInvite:
		return that.handleInvite(ctx, identity, msg)
	case actionStats:
		return that.game.RecentResults(ctx, identity)
	default:
		return fmt.Errorf("%w: action %q", apperror.ErrUnknownAction, msg.Action)
	}
}

// handleGameAction feeds a tapped control token into the engine. The token is
// parsed here, once, at the boundary; a token that does not fit the grammar
// only costs the user a notice.
func (that *Server) handleGameAction(ctx context.Context, identity string, msg *Message) error {
	var payload actionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal action payload: %w", err)
	}

	action, err := protocol.Parse(payload.Token)
	if err != nil {
		if notifyErr := that.Notify(ctx, identity, apperror.Notice(err)); notifyErr != nil {
			that.logger.Error("failed to notify about bad token", "error", notifyErr)
		}
		return err
	}

	scope := payload.Scope
	if scope == "" {
		scope = defaultScope
	}

	// engine errors already reached the user as a notice; surface them to the
	// log only
	if err = that.game.Dispatch(ctx, identity, scope, identity, action); err != nil {
		that.logger.Debug("action rejected", "identity", identity, "token", payload.Token, "reason", err)
	}

	return nil
}

// handleInvite resolves the invitee to a render target when they are
// connected; an offline invitee still gets the invitation recorded, they just
// cannot see the prompt.
func (that *Server) handleInvite(ctx context.Context, identity string, msg *Message) error {
	var payload invitePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal invite payload: %w", err)
	}

	inviteeTarget := ""
	if _, online := that.lookupClient(payload.Invitee); online {
		inviteeTarget = payload.Invitee
	}

	if err := that.game.Invite(ctx, identity, payload.Invitee, inviteeTarget); err != nil {
		that.logger.Debug("invite rejected", "identity", identity, "reason", err)
	}

	return nil
}

// Notifier implementation: render targets are client identities.

func (that *Server) Render(_ context.Context, target string, view service.RenderView) error {
	cl, ok := that.lookupClient(target)
	if !ok {
		return fmt.Errorf("no connected client for target %s", target)
	}

	return cl.send(Message{
		Action:  actionRender,
		Payload: mustMarshal(renderPayload{View: view}),
	})
}

func (that *Server) Notify(_ context.Context, identity, text string) error {
	cl, ok := that.lookupClient(identity)
	if !ok {
		return fmt.Errorf("no connected client for identity %s", identity)
	}

	return cl.send(Message{
		Action:  actionNotify,
		Payload: mustMarshal(notifyPayload{Text: text}),
	})
}

func (that *Server) Dismiss(_ context.Context, target string) error {
	cl, ok := that.lookupClient(target)
	if !ok {
		return fmt.Errorf("no connected client for target %s", target)
	}

	return cl.send(Message{Action: actionDismiss})
}
