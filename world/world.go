package world

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/raido/featureflag"
	"github.com/aukilabs/raido/messages"
	"github.com/aukilabs/raido/models"
	"github.com/aukilabs/raido/quadtree"
	"github.com/google/uuid"
)

// World represents an isolated simulation space where participants register
// entities and run overlap queries against a shared spatial index.
//
// All index access goes through the world under a single mutex, so the
// traversal markers left by one query can never be observed by another.
type World struct {
	ID        uint32
	WorldUUID string

	participantIDs   models.SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant

	entityIDs  models.SequentialIDGenerator
	indexMutex sync.Mutex
	root       *quadtree.Node
	entities   map[uint32]*models.Entity
	records    map[uint32]*quadtree.Record

	flags featureflag.FeatureFlag

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs models.SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewWorld(id uint32, opts Options) *World {
	opts = opts.normalized()

	return &World{
		ID:             id,
		WorldUUID:      uuid.NewString(),
		participants:   make(map[uint32]*Participant),
		root:           quadtree.NewNode(opts.Bounds, opts.Capacity, opts.MaxDepth),
		entities:       make(map[uint32]*models.Entity),
		records:        make(map[uint32]*quadtree.Record),
		flags:          opts.FeatureFlags,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(opts.FrameDuration),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (w *World) Close() {
	w.closeOnce.Do(func() {
		w.frameTicker.Stop()
		w.closeFrameChan <- struct{}{}
	})
}

func (w *World) NewParticipantID() uint32 {
	return w.participantIDs.New()
}

func (w *World) AddParticipant(p *Participant) {
	w.participantMutex.Lock()
	defer w.participantMutex.Unlock()

	w.participants[p.ID] = p
}

func (w *World) RemoveParticipant(p *Participant) {
	w.participantMutex.Lock()
	defer w.participantMutex.Unlock()

	delete(w.participants, p.ID)
}

func (w *World) GetParticipants() []*Participant {
	w.participantMutex.RLock()
	defer w.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(w.participants))
	for _, p := range w.participants {
		participants = append(participants, p)
	}
	return participants
}

func (w *World) ParticipantCount() int {
	w.participantMutex.RLock()
	defer w.participantMutex.RUnlock()

	return len(w.participants)
}

func (w *World) NewEntityID() uint32 {
	return w.entityIDs.New()
}

// AddEntity registers the entity and indexes it. An entity placed outside the
// world bounds stays registered but unindexed until a later move brings it
// back inside.
func (w *World) AddEntity(e *models.Entity) {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	w.entities[e.ID] = e

	r := quadtree.NewRecord(e)
	w.records[e.ID] = r
	w.root.Insert(r)

	instrumentIncreaseEntityGauge()
}

func (w *World) RemoveEntity(e *models.Entity) error {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	r, ok := w.records[e.ID]
	if !ok {
		return nil
	}

	if err := r.RemoveFromAllParents(); err != nil {
		return err
	}
	delete(w.records, e.ID)
	delete(w.entities, e.ID)

	instrumentDecreaseEntityGauge()
	return nil
}

func (w *World) EntityByID(id uint32) (*models.Entity, bool) {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	e, ok := w.entities[id]
	return e, ok
}

func (w *World) Entities() []*models.Entity {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	entities := make([]*models.Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, e)
	}
	return entities
}

// EntityStates snapshots every registered entity for a world state message.
func (w *World) EntityStates() []messages.EntityState {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	states := make([]messages.EntityState, 0, len(w.entities))
	for _, e := range w.entities {
		pos := e.Position()
		states = append(states, messages.EntityState{
			ID:            e.ID,
			ParticipantID: e.ParticipantID,
			X:             pos.X,
			Y:             pos.Y,
			W:             e.Size.X,
			H:             e.Size.Y,
			Layer:         e.LayerBits,
			Mask:          e.MaskBits,
		})
	}
	return states
}

// Step advances the index by one frame: entities that moved since the last
// frame are pulled out, resynced and reinserted at their new position, then
// the tree is compacted unless shaking is disabled.
func (w *World) Step() {
	start := time.Now()

	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	w.reindex()
	w.flags.IfNotSet(featureflag.FlagDisableTreeShake, w.root.Shake)

	instrumentStepDuration(time.Since(start))
}

func (w *World) reindex() {
	for _, r := range w.records {
		if !r.Moved() {
			continue
		}

		if err := r.RemoveFromAllParents(); err != nil {
			logs.WithTag("world_uuid", w.WorldUUID).Error(err)
			continue
		}
		r.Sync()
		w.root.Insert(r)
	}
}

// QueryRegion returns the ids of the entities whose bounds intersect the
// given region, each at most once.
func (w *World) QueryRegion(region quadtree.Rect) []uint32 {
	start := time.Now()

	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	hits := w.root.Query(region)
	defer quadtree.ResetVisited(hits)

	ids := make([]uint32, 0, len(hits))
	for _, r := range hits {
		ids = append(ids, r.Collider().(*models.Entity).ID)
	}

	instrumentQueryDuration("region", time.Since(start))
	return ids
}

// QueryEntity returns the ids of the entities overlapping the given entity
// whose layer is selected by its mask. The querying entity never reports
// itself. Returns false when the entity is not registered.
func (w *World) QueryEntity(entityID uint32) ([]uint32, bool) {
	start := time.Now()

	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	q, ok := w.records[entityID]
	if !ok {
		return nil, false
	}

	hits := w.root.QueryRecord(q)
	defer quadtree.ResetVisited(hits)

	ids := make([]uint32, 0, len(hits))
	for _, r := range hits {
		if r == q {
			continue
		}
		ids = append(ids, r.Collider().(*models.Entity).ID)
	}

	instrumentQueryDuration("entity", time.Since(start))
	return ids, true
}

// NumTargets returns the number of unique indexed entities.
func (w *World) NumTargets() int {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	return w.root.NumTargets()
}

// DebugNodes describes the current partition for debug overlays.
func (w *World) DebugNodes() (targets int, nodes []messages.DebugNode) {
	w.indexMutex.Lock()
	defer w.indexMutex.Unlock()

	w.root.Visit(func(info quadtree.NodeInfo) {
		nodes = append(nodes, messages.DebugNode{
			X:       info.Bounds.Min.X,
			Y:       info.Bounds.Min.Y,
			W:       info.Bounds.Width(),
			H:       info.Bounds.Height(),
			Depth:   info.Depth,
			Leaf:    info.Leaf,
			Targets: info.Targets,
		})
	})

	return w.root.NumTargets(), nodes
}

// Broadcast sends the message to every participant but the sender.
func (w *World) Broadcast(sender *Participant, msgType string, v any) {
	msg, err := messages.New(msgType, v)
	if err != nil {
		logs.WithTag("msg_type", msgType).Debug(err)
		return
	}

	w.participantMutex.RLock()
	defer w.participantMutex.RUnlock()

	for _, p := range w.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}

// HandleFrame registers a handler called after every index step. The returned
// function cancels the registration.
func (w *World) HandleFrame(h func()) (cancel func()) {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	id := w.frameHandlerIDs.New()
	w.frameHandlers[id] = h

	return func() {
		w.frameMutex.Lock()
		defer w.frameMutex.Unlock()

		delete(w.frameHandlers, id)
		w.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames runs the frame loop until the world is closed: each
// tick steps the index, then notifies the frame handlers.
func (w *World) StartDispatchFrames() {
	w.startFrameOnce.Do(func() {
		for {
			select {
			case <-w.closeFrameChan:
				return

			case <-w.frameTicker.C:
				w.Step()

				w.frameMutex.RLock()
				for _, h := range w.frameHandlers {
					h()
				}
				w.frameMutex.RUnlock()
			}
		}
	})
}
