// Package fen reads the parts of a FEN string that move review depends on:
// the side to move, a normalized lookup key and the material on the board.
package fen

import (
	"errors"
	"strings"

	"github.com/discochess/gamereview/internal/model"
)

// ErrInvalidFEN indicates the FEN string is malformed.
var ErrInvalidFEN = errors.New("invalid FEN notation")

// Piece values used for material counting.
const (
	PawnValue   = 1
	KnightValue = 3
	BishopValue = 3
	RookValue   = 5
	QueenValue  = 9
)

// Army counts one side's non-king pieces.
type Army struct {
	Pawns   int
	Knights int
	Bishops int
	Rooks   int
	Queens  int
}

// Points returns the army's total piece value.
func (a Army) Points() int {
	return a.Pawns*PawnValue +
		a.Knights*KnightValue +
		a.Bishops*BishopValue +
		a.Rooks*RookValue +
		a.Queens*QueenValue
}

// Minors returns knights plus bishops.
func (a Army) Minors() int {
	return a.Knights + a.Bishops
}

// Material holds both armies, indexed by model.Color.
type Material [2]Army

// Side returns the army of c.
func (m Material) Side(c model.Color) Army {
	return m[c]
}

// Deficit returns how many points c is behind its opponent.
// A negative value means c is ahead.
func (m Material) Deficit(c model.Color) int {
	return m[c.Other()].Points() - m[c].Points()
}

// Normalize returns the first four FEN fields, dropping the halfmove
// clock and fullmove number, for use as a lookup key.
func Normalize(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return "", ErrInvalidFEN
	}
	if !validPlacement(parts[0]) {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return strings.Join(parts[:4], " "), nil
}

// ParseMaterial counts the pieces in the placement field of fen.
func ParseMaterial(fen string) (Material, error) {
	parts := strings.Fields(fen)
	if len(parts) == 0 {
		return Material{}, ErrInvalidFEN
	}

	var m Material
	for _, ch := range parts[0] {
		side := model.White
		if ch >= 'a' && ch <= 'z' {
			side = model.Black
		}
		army := &m[side]
		switch ch {
		case 'P', 'p':
			army.Pawns++
		case 'N', 'n':
			army.Knights++
		case 'B', 'b':
			army.Bishops++
		case 'R', 'r':
			army.Rooks++
		case 'Q', 'q':
			army.Queens++
		case 'K', 'k', '/', '1', '2', '3', '4', '5', '6', '7', '8':
		default:
			return Material{}, ErrInvalidFEN
		}
	}
	return m, nil
}

// SideToMove returns the color whose turn it is in fen.
func SideToMove(fen string) (model.Color, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return model.White, ErrInvalidFEN
	}
	switch parts[1] {
	case "w":
		return model.White, nil
	case "b":
		return model.Black, nil
	}
	return model.White, ErrInvalidFEN
}

func validPlacement(placement string) bool {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return false
	}
	for _, rank := range ranks {
		squares := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				squares += int(ch - '0')
			case strings.ContainsRune("PNBRQKpnbrqk", ch):
				squares++
			default:
				return false
			}
		}
		if squares != 8 {
			return false
		}
	}
	return true
}
