package http

import (
	"net/http"

	"github.com/aukilabs/raido/messages"
	"github.com/aukilabs/raido/world"
	"github.com/segmentio/encoding/json"
)

type overlay struct {
	WorldID string               `json:"world_id"`
	Targets int                  `json:"targets"`
	Nodes   []messages.DebugNode `json:"nodes"`
}

// HandleOverlay serves the partition debug overlay of a world as JSON.
// Without a world query parameter it lists the global ids of the hosted
// worlds.
func HandleOverlay(worlds *world.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worldID := r.URL.Query().Get("world")
		if worldID == "" {
			ids := make([]string, 0)
			for _, wld := range worlds.Worlds() {
				ids = append(ids, worlds.GlobalWorldID(wld.ID))
			}
			writeJSON(w, ids)
			return
		}

		wld, ok := worlds.GetByGlobalID(worldID)
		if !ok {
			http.Error(w, "world not found", http.StatusNotFound)
			return
		}

		targets, nodes := wld.DebugNodes()
		writeJSON(w, overlay{
			WorldID: worldID,
			Targets: targets,
			Nodes:   nodes,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encoding response failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}
