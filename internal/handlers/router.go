// Package handlers implements the HTTP/WebSocket transport described in
// spec §6.1-§6.3: thin adapters that parse/validate a request, call into
// the supervisor.Facade, and serialize the result through the uniform
// error envelope.
package handlers

import (
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/environment"
	"github.com/catalystcommunity/enginectl/internal/metrics"
	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/catalystcommunity/enginectl/internal/settings"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
	"github.com/gorilla/mux"
)

// API bundles everything a handler needs: the façade, environment, and
// settings store.
type API struct {
	Facade   *supervisor.Facade
	Env      *environment.Environment
	Settings *settings.Store
}

// NewRouter builds the application's gorilla/mux router with every route
// spec §6.1 names, wrapped in the CORS/access-log/recovery middleware
// chain. Route registration order matters: the literal "start-all" and
// "stop-all" paths are registered before the "{id}" pattern so they are
// never parsed as instance ids (spec §6.1).
func NewRouter(api *API) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.Recover)
	r.Use(middleware.AccessLog(routeLabel))

	r.HandleFunc("/status", api.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/gpus", api.handleGPUs).Methods(http.MethodGet)

	r.HandleFunc("/settings", api.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings", api.handlePutSettings).Methods(http.MethodPut)

	r.HandleFunc("/install", api.handleInstall).Methods(http.MethodPost)
	r.HandleFunc("/install/sage-attention", api.handleInstallSage).Methods(http.MethodPost)
	r.HandleFunc("/update", api.handleUpdate).Methods(http.MethodPost)
	r.HandleFunc("/purge", api.handlePurge).Methods(http.MethodPost)
	r.HandleFunc("/purge-all", api.handlePurgeAll).Methods(http.MethodPost)

	r.HandleFunc("/comfyui/target", api.handleGetEngineTarget).Methods(http.MethodGet)
	r.HandleFunc("/comfyui/target", api.handleSetEngineTarget).Methods(http.MethodPut, http.MethodPost)

	r.HandleFunc("/instances/start-all", api.handleStartAllInstances).Methods(http.MethodPost)
	r.HandleFunc("/instances/stop-all", api.handleStopAllInstances).Methods(http.MethodPost)
	r.HandleFunc("/instances", api.handleListInstances).Methods(http.MethodGet)
	r.HandleFunc("/instances", api.handleAddInstance).Methods(http.MethodPost)
	r.HandleFunc("/instances/{id}", api.handleRemoveInstance).Methods(http.MethodDelete)
	r.HandleFunc("/instances/{id}/start", api.handleStartInstance).Methods(http.MethodPost)
	r.HandleFunc("/instances/{id}/stop", api.handleStopInstance).Methods(http.MethodPost)

	r.HandleFunc("/models/registry", api.handleModelsRegistry).Methods(http.MethodGet)
	r.HandleFunc("/models/registry/{id}", api.handleModelRegistryEntry).Methods(http.MethodGet)
	r.HandleFunc("/models/local", api.handleModelsLocal).Methods(http.MethodGet)
	r.HandleFunc("/models/search", api.handleModelsSearch).Methods(http.MethodGet)
	r.HandleFunc("/models/categories", api.handleModelsCategories).Methods(http.MethodGet)
	r.HandleFunc("/models/download", api.handleModelsDownload).Methods(http.MethodPost)

	r.HandleFunc("/nodes/registry", api.handleNodesRegistry).Methods(http.MethodGet)
	r.HandleFunc("/nodes/installed", api.handleNodesInstalled).Methods(http.MethodGet)
	r.HandleFunc("/nodes/install", api.handleNodesInstall).Methods(http.MethodPost)
	r.HandleFunc("/nodes/update", api.handleNodesUpdate).Methods(http.MethodPost)
	r.HandleFunc("/nodes/update-all", api.handleNodesUpdateAll).Methods(http.MethodPost)
	r.HandleFunc("/nodes/{name}", api.handleNodeRemove).Methods(http.MethodDelete)

	r.HandleFunc("/jobs", api.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", api.handleGetJob).Methods(http.MethodGet)

	r.HandleFunc("/logs", api.handleRecentLogs).Methods(http.MethodGet)
	r.HandleFunc("/ws/logs", api.handleLogsWebSocket).Methods(http.MethodGet)

	r.Path("/metrics").Handler(metrics.Handler())

	return r
}

// routeLabel derives the metric/log label for a request: the matched
// route's template path if mux resolved one, otherwise the raw path.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
