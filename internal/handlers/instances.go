package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/catalystcommunity/enginectl/internal/instances"
	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
	"github.com/gorilla/mux"
)

// instanceView is the wire shape for one instance, grounded on
// original_source/api/routes/instances.py's _serialize_instance().
type instanceView struct {
	InstanceID string   `json:"instance_id"`
	GPUDevice  string   `json:"gpu_device"`
	GPULabel   string   `json:"gpu_label"`
	Port       int      `json:"port"`
	Host       string   `json:"host"`
	VramMode   string   `json:"vram_mode"`
	ExtraArgs  []string `json:"extra_args"`
	Status     string   `json:"status"`
	IsRunning  bool     `json:"is_running"`
	URL        string   `json:"url"`
}

func serializeInstance(s *instances.State) instanceView {
	return instanceView{
		InstanceID: s.InstanceID,
		GPUDevice:  s.Config.Device.String(),
		GPULabel:   s.Config.GPULabel,
		Port:       s.Config.Port,
		Host:       s.Config.Host,
		VramMode:   string(s.Config.VramMode),
		ExtraArgs:  s.Config.ExtraArgs,
		Status:     string(s.Status),
		IsRunning:  s.Handle.IsRunning(),
		URL:        s.URL(),
	}
}

func (api *API) handleListInstances(w http.ResponseWriter, r *http.Request) {
	list := api.Facade.Instances.List()
	views := make([]instanceView, 0, len(list))
	for _, s := range list {
		views = append(views, serializeInstance(s))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"instances": views,
		"count":     len(views),
	})
}

// addInstanceRequest is the wire shape for POST /instances. GPUDevice is
// required; Port defaults to the next available port in the configured
// range when omitted or zero.
type addInstanceRequest struct {
	GPUDevice string   `json:"gpu_device"`
	GPULabel  string   `json:"gpu_label"`
	Port      int      `json:"port"`
	Host      string   `json:"host"`
	VramMode  string   `json:"vram_mode"`
	ExtraArgs []string `json:"extra_args"`
}

func (api *API) handleAddInstance(w http.ResponseWriter, r *http.Request) {
	var body addInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	device, err := instances.ParseDevice(body.GPUDevice)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	vramMode := instances.VramMode(body.VramMode)
	if vramMode == "" {
		vramMode = instances.VramNormal
	}

	port := body.Port
	if port == 0 {
		port = api.Facade.Instances.NextAvailablePort(api.Env.PortRangeStart)
	}

	cfg, err := instances.NewInstanceConfig(device, body.GPULabel, port, body.Host, vramMode, body.ExtraArgs)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	id, err := api.Facade.AddInstance(cfg)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "could not add instance", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, serializeInstance(api.Facade.Instances.Get(id)))
}

func (api *API) handleRemoveInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !api.Facade.RemoveInstance(id) {
		middleware.WriteError(w, http.StatusNotFound, "instance not found", "")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"instance_id": id, "removed": true})
}

func (api *API) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := api.Facade.StartInstance(id)
	if err != nil {
		writeInstanceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, serializeInstance(state))
}

func (api *API) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := api.Facade.StopInstance(id)
	if err != nil {
		writeInstanceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, serializeInstance(state))
}

func (api *API) handleStartAllInstances(w http.ResponseWriter, r *http.Request) {
	agg := api.Facade.StartAll()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      agg.Failed == 0,
		"results": agg.Details,
		"started": agg.Success,
		"total":   agg.Success + agg.Failed,
	})
}

func (api *API) handleStopAllInstances(w http.ResponseWriter, r *http.Request) {
	ok := api.Facade.StopAll()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"stopped": ok})
}

func writeInstanceError(w http.ResponseWriter, err error) {
	if err == supervisor.ErrNotFound {
		middleware.WriteError(w, http.StatusNotFound, "instance not found", "")
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, "request failed", err.Error())
}
