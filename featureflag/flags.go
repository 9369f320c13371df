package featureflag

type Flag string

const (
	FlagDisableTreeShake                 Flag = "DISABLE_TREE_SHAKE"
	FlagDisableWorldState                Flag = "DISABLE_WORLD_STATE"
	FlagDisableEntityAddBroadcast        Flag = "DISABLE_ENTITY_ADD_BROADCAST"
	FlagDisableEntityDeleteBroadcast     Flag = "DISABLE_ENTITY_DELETE_BROADCAST"
	FlagDisableEntityUpdatePoseBroadcast Flag = "DISABLE_ENTITY_UPDATE_POSE_BROADCAST"
)
