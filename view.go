package main

import (
	"github.com/bodul/minefield/chunk"
	"github.com/bodul/minefield/grid"
	"github.com/bodul/minefield/world"
)

// TileView is a tile as sent to clients. Mine positions never leave the
// server while the game is running.
type TileView struct {
	X         int         `json:"x"`
	Y         int         `json:"y"`
	State     chunk.State `json:"state"`
	MineCount *int        `json:"mine_count,omitempty"`
}

// ChunkView is the client representation of one materialized chunk.
type ChunkView struct {
	X     int             `json:"x"`
	Y     int             `json:"y"`
	Size  int             `json:"size"`
	State world.GameState `json:"state"`
	Tiles []TileView      `json:"tiles"`
}

// viewTile hides everything a player has not uncovered. Once the world is
// lost, hidden mines are shown as "mine".
func viewTile(t chunk.Tile, state world.GameState) TileView {
	v := TileView{X: t.X, Y: t.Y, State: t.State}
	switch {
	case t.State == chunk.Revealed:
		n := t.MineCount
		v.MineCount = &n
	case state == world.Lost && t.IsMine && t.State == chunk.Hidden:
		v.State = chunk.Mine
	}
	return v
}

func viewChunk(c *chunk.Chunk, state world.GameState) ChunkView {
	tiles := c.Tiles()
	out := ChunkView{
		X:     c.Offset().X,
		Y:     c.Offset().Y,
		Size:  c.Size(),
		State: state,
		Tiles: make([]TileView, len(tiles)),
	}
	for i, t := range tiles {
		out.Tiles[i] = viewTile(t, state)
	}
	return out
}

// viewTiles renders only the listed tiles of c.
func viewTiles(c *chunk.Chunk, points []grid.Point, state world.GameState) []TileView {
	out := make([]TileView, 0, len(points))
	for _, p := range points {
		t, err := c.Tile(p.X, p.Y)
		if err != nil {
			continue
		}
		out = append(out, viewTile(t, state))
	}
	return out
}
