package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := Store{ServerID: "t3d"}

	w := s.NewWorld()
	defer w.Close()
	require.NotEmpty(t, w.WorldUUID)

	globalID := s.GlobalWorldID(w.ID)
	require.Equal(t, "t3dx1", globalID)

	_, ok := s.GetByGlobalID(globalID)
	require.False(t, ok)

	require.NoError(t, s.Add(ctx, w))
	got, ok := s.GetByGlobalID(globalID)
	require.True(t, ok)
	require.Equal(t, w, got)
	require.Len(t, s.Worlds(), 1)

	s.Remove(ctx, w)
	_, ok = s.GetByGlobalID(globalID)
	require.False(t, ok)
	require.Empty(t, s.Worlds())
}

func TestStoreReusesWorldIDs(t *testing.T) {
	ctx := context.Background()
	s := Store{}

	a := s.NewWorld()
	require.NoError(t, s.Add(ctx, a))
	s.Remove(ctx, a)

	b := s.NewWorld()
	defer b.Close()
	require.Equal(t, a.ID, b.ID)
}
