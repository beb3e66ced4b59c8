package service

import (
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// BotService picks the computer opponent's next cell. The single-method
// contract keeps the policy swappable: a minimax player drops in here without
// touching the session machinery.
type BotService interface {
	ChooseCell(board entity.Board, mark entity.Mark) (int, error)
}

type botService struct{}

// NewBotService returns the reference policy: uniform random over empty cells.
func NewBotService() BotService {
	return &botService{}
}

func (that *botService) ChooseCell(board entity.Board, mark entity.Mark) (int, error) {
	availableCells := board.EmptyCells()
	if len(availableCells) == 0 {
		return 0, fmt.Errorf("%w: board is full for %s", apperror.ErrNoLegalMove, mark)
	}

	return availableCells[rand.Intn(len(availableCells))], nil //nolint: gosec // it's ok
}
