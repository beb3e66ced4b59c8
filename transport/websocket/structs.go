package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
)

// Message is the envelope for everything crossing the socket, both ways.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	actionConnect    = "connect"
	actionMenu       = "menu"
	actionGameAction = "game:action"
	actionInvite     = "invite"
	actionStats      = "stats"

	actionRender  = "render"
	actionNotify  = "notify"
	actionDismiss = "dismiss"
)

type connectPayload struct {
	ID string `json:"id"`
}

type actionPayload struct {
	// Token is the opaque action token of the control the user tapped.
	Token string `json:"token"`
	// Scope is the matchmaking namespace, e.g. a room name.
	Scope string `json:"scope,omitempty"`
}

type invitePayload struct {
	Invitee string `json:"invitee"`
}

type renderPayload struct {
	View service.RenderView `json:"view"`
}

type notifyPayload struct {
	Text string `json:"text"`
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
