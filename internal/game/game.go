// Package game turns PGN text or FEN lists into the positions and outcome
// a review needs. Move legality and checkmate detection come from
// github.com/notnil/chess.
package game

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/notnil/chess"

	"github.com/discochess/gamereview/internal/classify"
	"github.com/discochess/gamereview/internal/model"
)

// ErrNoGames indicates a PGN stream held no games.
var ErrNoGames = errors.New("game: no games in input")

// Game is one game ready for review.
type Game struct {
	positions []model.Position
	outcome   classify.Outcome
	tags      map[string]string
	san       []string
}

// FromPGN reads every game in r. Movetext without a tag section is read
// as a single game. Games with neither tags nor moves are dropped.
func FromPGN(r io.Reader) ([]*Game, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading PGN: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ErrNoGames
	}
	if !strings.HasPrefix(text, "[") {
		return fromMovetext(text)
	}

	scanner := chess.NewScanner(strings.NewReader(text))
	var games []*Game
	for scanner.Scan() {
		g := scanner.Next()
		if len(g.Moves()) == 0 && len(g.TagPairs()) == 0 {
			continue
		}
		games = append(games, fromChess(g))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return games, fmt.Errorf("reading game %d: %w", len(games)+1, err)
	}
	if len(games) == 0 {
		return nil, ErrNoGames
	}
	return games, nil
}

func fromMovetext(text string) ([]*Game, error) {
	pgnFunc, err := chess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing movetext: %w", err)
	}
	g := chess.NewGame(pgnFunc)
	if len(g.Moves()) == 0 {
		return nil, ErrNoGames
	}
	return []*Game{fromChess(g)}, nil
}

// FromPGNString reads the single game in pgn.
func FromPGNString(pgn string) (*Game, error) {
	games, err := FromPGN(strings.NewReader(pgn))
	if err != nil {
		return nil, err
	}
	return games[0], nil
}

func fromChess(g *chess.Game) *Game {
	chessPositions := g.Positions()
	positions := make([]model.Position, len(chessPositions))
	for i, p := range chessPositions {
		positions[i] = model.Position{Index: i, FEN: p.String()}
	}

	moves := g.Moves()
	san := make([]string, len(moves))
	notation := chess.AlgebraicNotation{}
	for i, m := range moves {
		if i < len(chessPositions) {
			san[i] = notation.Encode(chessPositions[i], m)
		}
	}

	tags := make(map[string]string)
	for _, tp := range g.TagPairs() {
		tags[tp.Key] = tp.Value
	}

	var outcome classify.Outcome
	if g.Method() == chess.Checkmate && len(chessPositions) > 0 {
		outcome = classify.Outcome{
			Checkmate: true,
			Loser:     color(chessPositions[len(chessPositions)-1].Turn()),
		}
	}

	return &Game{positions: positions, outcome: outcome, tags: tags, san: san}
}

// FromFENs builds a game from consecutive positions. The outcome is a
// checkmate when the last position is one.
func FromFENs(fens []string) (*Game, error) {
	positions := make([]model.Position, len(fens))
	var last *chess.Position
	for i, f := range fens {
		f = strings.TrimSpace(f)
		opt, err := chess.FEN(f)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		last = chess.NewGame(opt).Position()
		positions[i] = model.Position{Index: i, FEN: f}
	}

	g := &Game{positions: positions, tags: map[string]string{}}
	if last != nil && last.Status() == chess.Checkmate {
		g.outcome = classify.Outcome{Checkmate: true, Loser: color(last.Turn())}
	}
	return g, nil
}

// Positions returns each position of the game, the initial one first.
func (g *Game) Positions() []model.Position {
	return g.positions
}

// Outcome reports whether the game ended in checkmate and who was mated.
func (g *Game) Outcome() classify.Outcome {
	return g.outcome
}

// Tag returns a PGN tag value, or "" when the tag is absent.
func (g *Game) Tag(name string) string {
	return g.tags[name]
}

// MoveSAN returns the move that produced position ply, in algebraic
// notation. It is "" for ply 0 and for games built from FENs.
func (g *Game) MoveSAN(ply int) string {
	if ply < 1 || ply > len(g.san) {
		return ""
	}
	return g.san[ply-1]
}

// Title renders the players and result like "Carlsen vs Nakamura (1-0)".
func (g *Game) Title() string {
	white, black := g.Tag("White"), g.Tag("Black")
	if white == "" && black == "" {
		return "game"
	}
	title := white + " vs " + black
	if result := g.Tag("Result"); result != "" {
		title += " (" + result + ")"
	}
	return title
}

func color(c chess.Color) model.Color {
	if c == chess.Black {
		return model.Black
	}
	return model.White
}
