package messages

// Message types exchanged over the realtime connection.
const (
	TypePingRequest  = "ping_request"
	TypePingResponse = "ping_response"
	TypeSyncClock    = "sync_clock"
	TypeError        = "error_response"

	TypeWorldJoinRequest  = "world_join_request"
	TypeWorldJoinResponse = "world_join_response"
	TypeWorldState        = "world_state"

	TypeEntityAddRequest          = "entity_add_request"
	TypeEntityAddResponse         = "entity_add_response"
	TypeEntityAddBroadcast        = "entity_add_broadcast"
	TypeEntityDeleteRequest       = "entity_delete_request"
	TypeEntityDeleteResponse      = "entity_delete_response"
	TypeEntityDeleteBroadcast     = "entity_delete_broadcast"
	TypeEntityUpdatePose          = "entity_update_pose"
	TypeEntityUpdatePoseBroadcast = "entity_update_pose_broadcast"

	TypeQueryRegionRequest = "query_region_request"
	TypeQueryEntityRequest = "query_entity_request"
	TypeQueryResponse      = "query_response"

	TypeDebugInfoRequest  = "debug_info_request"
	TypeDebugInfoResponse = "debug_info_response"
)

// Error codes carried by ErrorResponse.
const (
	ErrorCodeBadRequest uint32 = iota + 1
	ErrorCodeNotFound
	ErrorCodeUnauthorized
	ErrorCodeWorldAlreadyJoined
	ErrorCodeInternalServerError
)

type Request struct {
	RequestID uint32 `msgpack:"rid"`
}

type Response struct {
	RequestID uint32 `msgpack:"rid"`
}

type ErrorResponse struct {
	RequestID uint32 `msgpack:"rid"`
	Code      uint32 `msgpack:"code"`
}

// SyncClock carries the server time in unix microseconds.
type SyncClock struct {
	Timestamp int64 `msgpack:"ts"`
}

type Pose struct {
	X float32 `msgpack:"x"`
	Y float32 `msgpack:"y"`
}

// EntityState is the full description of one registered entity.
type EntityState struct {
	ID            uint32  `msgpack:"id"`
	ParticipantID uint32  `msgpack:"pid"`
	X             float32 `msgpack:"x"`
	Y             float32 `msgpack:"y"`
	W             float32 `msgpack:"w"`
	H             float32 `msgpack:"h"`
	Layer         uint32  `msgpack:"l"`
	Mask          uint32  `msgpack:"m"`
}

type WorldJoinRequest struct {
	RequestID uint32 `msgpack:"rid"`

	// The global id of the world to join. Empty to create a new world.
	WorldID string `msgpack:"wid"`
}

type WorldJoinResponse struct {
	RequestID     uint32 `msgpack:"rid"`
	WorldID       string `msgpack:"wid"`
	WorldUUID     string `msgpack:"wuid"`
	ParticipantID uint32 `msgpack:"pid"`
}

// WorldState is sent to a joining participant unless disabled by flag.
type WorldState struct {
	Entities []EntityState `msgpack:"entities"`
}

type EntityAddRequest struct {
	RequestID uint32  `msgpack:"rid"`
	X         float32 `msgpack:"x"`
	Y         float32 `msgpack:"y"`
	W         float32 `msgpack:"w"`
	H         float32 `msgpack:"h"`
	Layer     uint32  `msgpack:"l"`
	Mask      uint32  `msgpack:"m"`
}

type EntityAddResponse struct {
	RequestID uint32 `msgpack:"rid"`
	EntityID  uint32 `msgpack:"eid"`
}

type EntityAddBroadcast struct {
	Entity EntityState `msgpack:"entity"`
}

type EntityDeleteRequest struct {
	RequestID uint32 `msgpack:"rid"`
	EntityID  uint32 `msgpack:"eid"`
}

type EntityDeleteResponse struct {
	RequestID uint32 `msgpack:"rid"`
}

type EntityDeleteBroadcast struct {
	EntityID uint32 `msgpack:"eid"`
}

type EntityUpdatePose struct {
	EntityID uint32 `msgpack:"eid"`
	Pose     Pose   `msgpack:"pose"`
}

type EntityUpdatePoseBroadcast struct {
	EntityID uint32 `msgpack:"eid"`
	Pose     Pose   `msgpack:"pose"`
}

type QueryRegionRequest struct {
	RequestID uint32  `msgpack:"rid"`
	X         float32 `msgpack:"x"`
	Y         float32 `msgpack:"y"`
	W         float32 `msgpack:"w"`
	H         float32 `msgpack:"h"`
}

type QueryEntityRequest struct {
	RequestID uint32 `msgpack:"rid"`
	EntityID  uint32 `msgpack:"eid"`
}

type QueryResponse struct {
	RequestID uint32   `msgpack:"rid"`
	EntityIDs []uint32 `msgpack:"eids"`
}

type DebugInfoRequest struct {
	RequestID uint32 `msgpack:"rid"`

	// When set, a fresh overlay is streamed after every index step until a
	// request with Stream unset is received.
	Stream bool `msgpack:"stream"`
}

// DebugNode describes one node of the spatial partition for overlays.
type DebugNode struct {
	X       float32 `msgpack:"x" json:"x"`
	Y       float32 `msgpack:"y" json:"y"`
	W       float32 `msgpack:"w" json:"w"`
	H       float32 `msgpack:"h" json:"h"`
	Depth   int     `msgpack:"depth" json:"depth"`
	Leaf    bool    `msgpack:"leaf" json:"leaf"`
	Targets int     `msgpack:"targets" json:"targets"`
}

type DebugInfoResponse struct {
	RequestID uint32      `msgpack:"rid"`
	WorldID   string      `msgpack:"wid"`
	Targets   int         `msgpack:"targets"`
	Nodes     []DebugNode `msgpack:"nodes"`
}
