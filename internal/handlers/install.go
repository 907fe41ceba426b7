package handlers

import (
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/middleware"
)

func (api *API) handleInstall(w http.ResponseWriter, r *http.Request) {
	rec := api.Facade.InstallFull()
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}

func (api *API) handleInstallSage(w http.ResponseWriter, r *http.Request) {
	rec := api.Facade.InstallSageAttention()
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}

func (api *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	rec := api.Facade.Update()
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}

// handlePurge is synchronous (spec §6.1: 200, not a job) — the façade stops
// every instance and blocks until the engine checkout is removed.
func (api *API) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := api.Facade.Purge(); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "purge failed", err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"purged": true})
}

func (api *API) handlePurgeAll(w http.ResponseWriter, r *http.Request) {
	if err := api.Facade.PurgeAll(); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "purge-all failed", err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"purged": true})
}
