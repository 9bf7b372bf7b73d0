// services/board.go
//
// Pure board model for the 8x8 naval grid: generation, position parsing,
// shot application and sunk-ship detection. Nothing here touches the
// database; the game service serializes boards into game_players.board.
package services

import (
	"encoding/json"
	"math/rand"
)

const (
	BoardSize  = 8
	TotalShips = 15
)

// Cell tokens as persisted in the serialized board.
const (
	CellWater = "water"
	CellShip  = "ship"
	CellHit   = "hit"
	CellMiss  = "miss"
)

// Board is an 8x8 grid of cell tokens, row-major.
type Board [][]string

// NewBoard returns an all-water board.
func NewBoard() Board {
	b := make(Board, BoardSize)
	for i := range b {
		b[i] = make([]string, BoardSize)
		for j := range b[i] {
			b[i][j] = CellWater
		}
	}
	return b
}

// GenerateBoard places exactly TotalShips ship cells uniformly at random by
// rejection sampling: pick a cell, skip it if already a ship. There is no
// spacing or shape rule, so "ships" are single cells that may happen to touch
// and form clusters. The rand source is injected so boards are deterministic
// under test; every caller gets independent boards.
func GenerateBoard(rng *rand.Rand) Board {
	b := NewBoard()
	placed := 0
	for placed < TotalShips {
		row := rng.Intn(BoardSize)
		col := rng.Intn(BoardSize)
		if b[row][col] == CellWater {
			b[row][col] = CellShip
			placed++
		}
	}
	return b
}

// ParsePosition maps a code like "A3" (column letter A-H, row digit 1-8) to
// zero-based row/col indices.
func ParsePosition(position string) (row, col int, err error) {
	if len(position) != 2 {
		return 0, 0, ErrInvalidPosition
	}
	letter, digit := position[0], position[1]
	if letter < 'A' || letter > 'H' || digit < '1' || digit > '8' {
		return 0, 0, ErrInvalidPosition
	}
	return int(digit - '1'), int(letter - 'A'), nil
}

// FormatPosition is the inverse of ParsePosition.
func FormatPosition(row, col int) string {
	return string(rune('A'+col)) + string(rune('1'+row))
}

// ShotResult reports what a single shot did to the defender's board.
type ShotResult struct {
	Hit           bool `json:"hit"`
	ShipDestroyed bool `json:"ship_destroyed"`
}

// ApplyShot resolves a shot against the board in place. A cell that is
// already hit or miss is terminal and rejected without mutation.
func (b Board) ApplyShot(position string) (ShotResult, error) {
	row, col, err := ParsePosition(position)
	if err != nil {
		return ShotResult{}, err
	}

	switch b[row][col] {
	case CellHit, CellMiss:
		return ShotResult{}, ErrAlreadyShot
	case CellShip:
		b[row][col] = CellHit
		return ShotResult{Hit: true, ShipDestroyed: b.shipDestroyed(row, col)}, nil
	default:
		b[row][col] = CellMiss
		return ShotResult{}, nil
	}
}

// shipDestroyed walks the maximal 4-connected cluster of ship/hit cells
// containing (row, col) and reports whether every cell in it has been hit.
// Since placement has no shape rule, a "ship" here is whatever cluster the
// random placement produced; single cells are the common case. The traversal
// uses an explicit stack, the grid is fixed at 64 cells.
func (b Board) shipDestroyed(row, col int) bool {
	type point struct{ row, col int }
	visited := [BoardSize][BoardSize]bool{}
	stack := []point{{row, col}}
	destroyed := true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.row < 0 || p.row >= BoardSize || p.col < 0 || p.col >= BoardSize {
			continue
		}
		if visited[p.row][p.col] {
			continue
		}
		cell := b[p.row][p.col]
		if cell != CellShip && cell != CellHit {
			continue
		}
		visited[p.row][p.col] = true

		if cell == CellShip {
			destroyed = false
		}

		stack = append(stack,
			point{p.row - 1, p.col},
			point{p.row + 1, p.col},
			point{p.row, p.col - 1},
			point{p.row, p.col + 1},
		)
	}
	return destroyed
}

// CountRemainingShips counts ship cells that have not been hit yet.
func (b Board) CountRemainingShips() int {
	count := 0
	for _, row := range b {
		for _, cell := range row {
			if cell == CellShip {
				count++
			}
		}
	}
	return count
}

// Redacted returns a copy with every un-hit ship rewritten to water. This is
// the fog of war: opponents only ever see hits and misses.
func (b Board) Redacted() Board {
	out := make(Board, len(b))
	for i, row := range b {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell == CellShip {
				out[i][j] = CellWater
			} else {
				out[i][j] = cell
			}
		}
	}
	return out
}

// Marshal serializes the board for the game_players.board column.
func (b Board) Marshal() (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// UnmarshalBoard restores a board from its serialized column value.
func UnmarshalBoard(raw string) (Board, error) {
	var b Board
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, err
	}
	return b, nil
}
