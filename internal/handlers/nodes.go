package handlers

import (
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/collaborators"
	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/gorilla/mux"
)

func (api *API) handleNodesRegistry(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		collaborators.RegistryNode
		Status string `json:"status"`
	}
	entries := make([]entry, 0, len(collaborators.NodeRegistry))
	for _, n := range collaborators.NodeRegistry {
		entries = append(entries, entry{RegistryNode: n, Status: api.Facade.Plugins.Status(n.ID)})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"nodes":      entries,
		"count":      len(entries),
		"categories": collaborators.NodeCategories(),
	})
}

func (api *API) handleNodesInstalled(w http.ResponseWriter, r *http.Request) {
	installed := api.Facade.Plugins.ListInstalled()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": installed,
		"count": len(installed),
	})
}

func (api *API) handleNodesInstall(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeIDs []string `json:"node_ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if len(body.NodeIDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "node_ids must not be empty", "")
		return
	}

	rec := api.Facade.InstallNodes(body.NodeIDs)
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}

func (api *API) handleNodesUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeNames []string `json:"node_names"`
	}
	if err := decodeJSON(r, &body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if len(body.NodeNames) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "node_names must not be empty", "")
		return
	}

	rec := api.Facade.UpdateNodes(body.NodeNames)
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}

func (api *API) handleNodesUpdateAll(w http.ResponseWriter, r *http.Request) {
	rec := api.Facade.UpdateAllNodes()
	middleware.WriteJSON(w, http.StatusAccepted, rec.Snapshot())
}

func (api *API) handleNodeRemove(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !api.Facade.RemoveNode(name) {
		middleware.WriteError(w, http.StatusNotFound, "node not found", "")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"name": name, "removed": true})
}
