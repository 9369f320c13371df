package models

import (
	"testing"

	"github.com/aukilabs/raido/quadtree"
	"github.com/stretchr/testify/require"
)

func TestEntityBounds(t *testing.T) {
	e := &Entity{
		ID:        1,
		Size:      quadtree.Vec2{X: 5, Y: 10},
		LayerBits: 0b01,
		MaskBits:  0b10,
	}
	e.SetPosition(quadtree.Vec2{X: 20, Y: 30})

	require.True(t, e.Bounds().Equal(quadtree.NewRect(20, 30, 5, 10)))
	require.Equal(t, uint32(0b01), e.Layer())
	require.Equal(t, uint32(0b10), e.Mask())
}

func TestEntityIsACollider(t *testing.T) {
	var _ quadtree.Collider = &Entity{}

	e := &Entity{Size: quadtree.Vec2{X: 2, Y: 2}}
	r := quadtree.NewRecord(e)
	require.False(t, r.Moved())

	e.SetPosition(quadtree.Vec2{X: 4, Y: 4})
	require.True(t, r.Moved())
}
