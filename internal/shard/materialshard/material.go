// Package materialshard groups positions by the material on the board.
//
// Consecutive positions of a game rarely change material, so reviewing a
// game touches only a handful of shards and the shard cache stays warm.
package materialshard

import (
	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/shard"
	"github.com/discochess/gamereview/internal/shard/fnvshard"
)

// Name is the manifest name of this strategy.
const Name = "material"

// Strategy implements material-signature sharding.
type Strategy struct{}

// Ensure Strategy implements shard.Strategy.
var _ shard.Strategy = (*Strategy)(nil)

// New returns a material sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns "material".
func (s *Strategy) Name() string {
	return Name
}

// ShardID reduces the material signature of fen modulo totalShards. FENs
// whose placement cannot be read fall back to fnvshard.
func (s *Strategy) ShardID(fenStr string, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	mat, err := fen.ParseMaterial(fenStr)
	if err != nil {
		return fnvshard.Hash(fenStr, totalShards)
	}
	side, err := fen.SideToMove(fenStr)
	if err != nil {
		return fnvshard.Hash(fenStr, totalShards)
	}
	return int(Signature(mat, side) % uint32(totalShards))
}

// Signature packs each army into 11 bits and the side to move into bit 22:
//
//	bits 0-1   queens, capped at 3
//	bits 2-3   rooks, capped at 3
//	bits 4-6   minor pieces, capped at 7
//	bits 7-10  pawns
//
// White occupies bits 0-10 and Black bits 11-21.
func Signature(mat fen.Material, side model.Color) uint32 {
	var id uint32
	for i, c := range []model.Color{model.White, model.Black} {
		id |= army(mat.Side(c)) << (11 * i)
	}
	if side == model.Black {
		id |= 1 << 22
	}
	return id
}

func army(a fen.Army) uint32 {
	return capped(a.Queens, 3) |
		capped(a.Rooks, 3)<<2 |
		capped(a.Minors(), 7)<<4 |
		capped(a.Pawns, 15)<<7
}

func capped(n, limit int) uint32 {
	return uint32(min(n, limit))
}
