package entity

// Mark is one of the two symbols a participant plays. MarkTie is only ever
// produced by Board.Evaluate, never written into a cell.
type Mark string

const (
	MarkX   Mark = "X"
	MarkO   Mark = "O"
	MarkTie Mark = "-"

	EmptyCell Mark = ""
)

// Opponent returns the other playable mark.
func (that Mark) Opponent() Mark {
	if that == MarkX {
		return MarkO
	}
	return MarkX
}

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is the 3x3 grid laid out row-major: cells 0-2 are the top row.
type Board [9]Mark

// Evaluate checks the 8 winning triples and returns the winning mark, MarkTie
// for a full board without a winner, or EmptyCell while the game can continue.
// It is total: any board, however it was built, yields a result.
func (that Board) Evaluate() Mark {
	for _, combo := range WinCombos {
		a, b, c := that[combo[0]], that[combo[1]], that[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game continues until every cell is taken
	for _, cell := range that {
		if cell == EmptyCell {
			return EmptyCell
		}
	}

	return MarkTie
}

// EmptyCells returns the indices still open for a move.
func (that Board) EmptyCells() []int {
	cells := make([]int, 0, len(that))
	for i, cell := range that {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}
	return cells
}
