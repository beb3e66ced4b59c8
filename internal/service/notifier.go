package service

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// Button is one interactive control: a label the user sees and the opaque
// action token the transport sends back when tapped.
type Button struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// RenderView is one presentation snapshot pushed outward after a mutation
// commits. Board is nil for views without a grid (menus, waiting prompts).
type RenderView struct {
	Text    string        `json:"text"`
	Board   *entity.Board `json:"board,omitempty"`
	Actions [][]Button    `json:"actions,omitempty"`
}

// Notifier is the port the transport layer implements to deliver state to end
// users. Render targets are opaque tokens minted by the transport; the engine
// stores and forwards them, never interprets them. Failures here are logged by
// the caller and never roll back a committed mutation.
type Notifier interface {
	// Render pushes or updates a presentation for one recipient.
	Render(ctx context.Context, target string, view RenderView) error
	// Notify delivers a fire-and-forget informational message.
	Notify(ctx context.Context, identity, text string) error
	// Dismiss removes a prior presentation, e.g. a consumed waiting prompt.
	Dismiss(ctx context.Context, target string) error
}
