package handlers

import (
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/collaborators"
	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
)

// handleStatus reports installation status and an instance summary in one
// call, so a UI's landing page needs exactly one request.
func (api *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	installation := api.Facade.Installer.CheckInstallation()
	list := api.Facade.Instances.List()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"installation":   installation,
		"is_installed":   api.Facade.Installer.IsInstalled(),
		"is_external":    api.Facade.Installer.IsExternal(),
		"instance_count": len(list),
		"running_count":  api.Facade.Instances.RunningCount(),
		"host_stats":     collaborators.CollectHostStats(),
		"active_engine":  api.Env.ActiveEngineDir(),
	})
}

// handleGPUs reports every GPU the host's probe can detect.
func (api *API) handleGPUs(w http.ResponseWriter, r *http.Request) {
	gpus := api.Facade.GPUs.Detect()
	if gpus == nil {
		gpus = []supervisor.GpuInfo{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gpus":  gpus,
		"count": len(gpus),
	})
}
