package quadtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRect(t *testing.T) {
	r := NewRect(10, 20, 30, 40)
	require.Equal(t, float32(30), r.Width())
	require.Equal(t, float32(40), r.Height())
	require.True(t, r.Center().Equal(Vec2{25, 40}))
}

func TestRectIntersects(t *testing.T) {
	base := NewRect(0, 0, 50, 50)

	require.True(t, base.Intersects(NewRect(25, 25, 50, 50)))
	require.True(t, base.Intersects(base))
	require.False(t, base.Intersects(NewRect(60, 60, 10, 10)))
	require.False(t, base.Intersects(NewRect(0, 60, 50, 10)))

	// Touching edges overlap: shapes on a quadrant seam belong to both sides.
	require.True(t, base.Intersects(NewRect(50, 0, 10, 50)))
	require.True(t, base.Intersects(NewRect(50, 50, 10, 10)))
}

func TestRectContains(t *testing.T) {
	base := NewRect(0, 0, 100, 100)
	require.True(t, base.Contains(NewRect(10, 10, 5, 5)))
	require.True(t, base.Contains(base))
	require.False(t, base.Contains(NewRect(95, 95, 10, 10)))
}

func TestRectQuadrant(t *testing.T) {
	base := NewRect(0, 0, 100, 100)

	require.True(t, base.Quadrant(0).Equal(NewRect(0, 0, 50, 50)))
	require.True(t, base.Quadrant(1).Equal(NewRect(50, 0, 50, 50)))
	require.True(t, base.Quadrant(2).Equal(NewRect(0, 50, 50, 50)))
	require.True(t, base.Quadrant(3).Equal(NewRect(50, 50, 50, 50)))
}
