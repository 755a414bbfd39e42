package main

import (
	"context"
	"net/http"
	"time"

	json "github.com/nspcc-dev/go-ordered-json"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chainstate"
	"github.com/stanislav-tkach/mintlayer-core/pkg/syncmgr"
)

// statusResponse is the minimal JSON document served by /status: it is
// intentionally not a JSON-RPC server, just enough for an operator's curl
// or monitoring probe to see the manager's coarse state.
type statusResponse struct {
	State      string `json:"state"`
	Peers      int    `json:"peers"`
	BestHeight uint32 `json:"best_height"`
	IBDDone    bool   `json:"ibd_done"`
}

func statusHandler(mgr *syncmgr.Manager, ch chainstate.Handle, peerCount func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		height, err := ch.BestHeight(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := statusResponse{
			State:      mgr.State().String(),
			Peers:      peerCount(),
			BestHeight: uint32(height),
			IBDDone:    mgr.State() == syncmgr.Idle,
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		_ = enc.Encode(resp)
	}
}
