package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/catalystcommunity/enginectl/internal/settings"
)

// handleGetSettings returns the persisted settings document verbatim.
func (api *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	doc, err := api.Settings.Load()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// handlePutSettings merges the request body into the persisted document
// (last-writer-wins per top-level key, spec §6.6).
func (api *API) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var updates settings.Document
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	doc, err := api.Settings.Merge(updates)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	api.Env.ApplySettings(doc)
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// handleGetEngineTarget reports the currently active engine path, and
// whether it is the managed install or an external override.
func (api *API) handleGetEngineTarget(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active_path": api.Env.ActiveEngineDir(),
		"is_external": api.Facade.Installer.IsExternal(),
		"managed_path": api.Env.EngineDir,
	})
}

// handleSetEngineTarget persists a new active engine path override. An
// empty path clears the override, reverting to the managed install.
func (api *API) handleSetEngineTarget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	doc, err := api.Settings.Merge(settings.Document{"active_engine_path": body.Path})
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	api.Env.ApplySettings(doc)
	if body.Path == "" {
		api.Env.ExternalEngineDir = ""
	}
	api.Facade.Logs.Emit("engine target set to "+api.Env.ActiveEngineDir(), "system")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active_path": api.Env.ActiveEngineDir(),
		"is_external": api.Facade.Installer.IsExternal(),
	})
}
