package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aukilabs/raido/featureflag"
	"github.com/aukilabs/raido/models"
	"github.com/aukilabs/raido/quadtree"
)

const (
	defaultServerID      = "raido"
	defaultWorldExtent   = 1024
	defaultFrameDuration = time.Millisecond * 50
)

// Options configures the worlds created by a store.
type Options struct {
	// The region covered by the spatial index. Entities outside it are not
	// indexed.
	Bounds quadtree.Rect

	// The leaf occupancy that triggers a split. 0 for the index default.
	Capacity int

	// The maximum number of tree levels. 0 for the index default.
	MaxDepth int

	// The interval between index steps.
	FrameDuration time.Duration

	FeatureFlags featureflag.FeatureFlag
}

func (o Options) normalized() Options {
	zero := quadtree.Rect{}
	if o.Bounds == zero {
		o.Bounds = quadtree.NewRect(
			-defaultWorldExtent,
			-defaultWorldExtent,
			defaultWorldExtent*2,
			defaultWorldExtent*2,
		)
	}
	if o.FrameDuration <= 0 {
		o.FrameDuration = defaultFrameDuration
	}
	return o
}

// Store holds the worlds hosted by this server, keyed by their global id.
type Store struct {
	// The id of this server, used to derive globally unique world ids.
	ServerID string

	Options Options

	initOnce sync.Once
	mutex    sync.RWMutex
	worlds   map[string]*World
	ids      models.SequentialIDGenerator
}

func (s *Store) init() {
	s.worlds = map[string]*World{}

	if s.ServerID == "" {
		s.ServerID = defaultServerID
	}
}

// NewWorld creates a world with the next free id and the store's options. The
// world is not registered until Add is called.
func (s *Store) NewWorld() *World {
	s.initOnce.Do(s.init)

	return NewWorld(s.ids.New(), s.Options)
}

func (s *Store) Add(ctx context.Context, w *World) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.worlds[s.GlobalWorldID(w.ID)] = w

	instrumentIncreaseWorldGauge()
	instrumentCountWorld()
	return nil
}

func (s *Store) Remove(ctx context.Context, w *World) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.worlds, s.GlobalWorldID(w.ID))
	w.Close()

	s.ids.Reuse(w.ID)

	instrumentDecreaseWorldGauge()
}

func (s *Store) GetByGlobalID(v string) (*World, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	w, ok := s.worlds[v]
	return w, ok
}

// Worlds returns every registered world.
func (s *Store) Worlds() []*World {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	worlds := make([]*World, 0, len(s.worlds))
	for _, w := range s.worlds {
		worlds = append(worlds, w)
	}
	return worlds
}

func (s *Store) GlobalWorldID(worldID uint32) string {
	return fmt.Sprintf("%sx%x", s.ServerID, worldID)
}
