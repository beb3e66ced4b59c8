package service

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

// View builders. Each produces the full presentation for one recipient so the
// transport never has to reach back into session state.

func menuView() RenderView {
	return RenderView{
		Text: "Welcome to Tic Tac Toe! Choose a game mode:",
		Actions: [][]Button{
			{{Label: "Single Player", Token: protocol.NewSoloToken()}},
			{{Label: "Quick Match", Token: protocol.QuickMatchToken()}},
			{{Label: "Open Game (share a code)", Token: protocol.NewOpenGameToken()}},
		},
	}
}

func waitingView() RenderView {
	return RenderView{
		Text: "Waiting for an opponent...",
		Actions: [][]Button{
			{{Label: "Cancel", Token: protocol.CancelQuickMatchToken()}},
		},
	}
}

func openGameView(code string) RenderView {
	return RenderView{
		Text: fmt.Sprintf("Your game code is %s. Share it with a friend!", code),
		Actions: [][]Button{
			{{Label: "Cancel", Token: protocol.CancelOpenGameToken()}},
		},
	}
}

func invitationView(invitationID, inviter string) RenderView {
	return RenderView{
		Text: fmt.Sprintf("%s invited you to play Tic Tac Toe!", inviter),
		Actions: [][]Button{
			{{Label: "Accept", Token: protocol.AcceptToken(invitationID)}},
			{{Label: "Decline", Token: protocol.DeclineToken(invitationID)}},
		},
	}
}

// gameView renders the session for one bound human.
func gameView(session *entity.Session, viewer string) RenderView {
	board := session.Board

	view := RenderView{
		Text:    gameText(session, viewer),
		Board:   &board,
		Actions: boardKeyboard(session),
	}

	controls := []Button{{Label: "Restart", Token: protocol.RestartToken(session.ID)}}
	if session.IsOngoing() {
		controls = append(controls, Button{Label: "Surrender", Token: protocol.SurrenderToken(session.ID)})
	}
	view.Actions = append(view.Actions, controls)

	return view
}

func boardKeyboard(session *entity.Session) [][]Button {
	keyboard := make([][]Button, 0, 4)

	for row := 0; row < 3; row++ {
		buttons := make([]Button, 0, 3)
		for col := 0; col < 3; col++ {
			cell := row*3 + col

			label := string(session.Board[cell])
			if label == "" {
				label = " "
			}

			buttons = append(buttons, Button{
				Label: label,
				Token: protocol.CellToken(session.ID, cell),
			})
		}
		keyboard = append(keyboard, buttons)
	}

	return keyboard
}

func gameText(session *entity.Session, viewer string) string {
	if session.IsFinished() {
		return outcomeText(session, viewer)
	}

	mark := session.Turn
	switch player := session.ParticipantFor(mark); {
	case player.IsComputer():
		return fmt.Sprintf("Computer is thinking (%s)...", mark)
	case player.Identity == viewer:
		return fmt.Sprintf("Your turn (%s)", mark)
	default:
		return fmt.Sprintf("Opponent's turn (%s)", mark)
	}
}

func outcomeText(session *entity.Session, viewer string) string {
	if session.Winner == entity.MarkTie {
		return "Game over. It's a draw!"
	}

	winner := session.ParticipantFor(session.Winner)

	if session.Surrendered != entity.EmptyCell {
		if winner.IsHuman() && winner.Identity == viewer {
			return "Your opponent surrendered. You win!"
		}
		return fmt.Sprintf("Game surrendered. %s wins by default!", session.Winner)
	}

	switch {
	case winner.IsComputer():
		return fmt.Sprintf("Computer (%s) wins!", session.Winner)
	case winner.Identity == viewer:
		return fmt.Sprintf("You (%s) win!", session.Winner)
	default:
		return fmt.Sprintf("Your opponent (%s) wins!", session.Winner)
	}
}

func resultLine(result *entity.GameResult, viewer string) string {
	when := result.FinishedAt.Format("Jan 2 15:04")

	if result.IsDraw() {
		return fmt.Sprintf("%s: draw", when)
	}

	winner := result.Players[result.Winner]
	if winner.IsHuman() && winner.Identity == viewer {
		return fmt.Sprintf("%s: you won (%s)", when, result.Winner)
	}

	return fmt.Sprintf("%s: you lost (%s won)", when, result.Winner)
}
