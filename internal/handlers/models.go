package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/catalystcommunity/enginectl/internal/collaborators"
	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/gorilla/mux"
)

func (api *API) handleModelsRegistry(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		collaborators.RegistryModel
		Status string `json:"status"`
	}
	entries := make([]entry, 0, len(collaborators.ModelRegistry))
	for _, m := range collaborators.ModelRegistry {
		entries = append(entries, entry{RegistryModel: m, Status: api.Facade.Downloader.Status(filepath.Join(m.Folder, m.Filename))})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"models": entries,
		"count":  len(entries),
	})
}

func (api *API) handleModelRegistryEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, m := range collaborators.ModelRegistry {
		if m.ID == id {
			middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"model":  m,
				"status": api.Facade.Downloader.Status(filepath.Join(m.Folder, m.Filename)),
			})
			return
		}
	}
	middleware.WriteError(w, http.StatusNotFound, "model not found", "")
}

func (api *API) handleModelsLocal(w http.ResponseWriter, r *http.Request) {
	byFolder := api.Facade.Downloader.ScanLocal()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"models": byFolder,
	})
}

func (api *API) handleModelsSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteError(w, http.StatusBadRequest, "missing query parameter q", "")
		return
	}
	limit := queryInt(r, "limit", 20)

	results, err := api.Facade.Downloader.Search(query, limit)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "search failed", err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (api *API) handleModelsCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": collaborators.ModelCategories,
	})
}

func (api *API) handleModelsDownload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssetIDs []string `json:"asset_ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if len(body.AssetIDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "asset_ids must not be empty", "")
		return
	}

	rec := api.Facade.DownloadModels(body.AssetIDs)
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}
