package handlers

import (
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/gorilla/mux"
)

func (api *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	records := api.Facade.Jobs.List()
	snapshots := make([]interface{}, 0, len(records))
	for _, rec := range records {
		snapshots = append(snapshots, rec.Snapshot())
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  snapshots,
		"count": len(snapshots),
	})
}

func (api *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec := api.Facade.Jobs.Get(id)
	if rec == nil {
		middleware.WriteError(w, http.StatusNotFound, "job not found", "")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rec.Snapshot())
}
