// Package instances implements the thread-safe InstanceRegistry: a keyed
// collection of engine processes pinned to distinct GPU/port pairs.
package instances

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/metrics"
	"github.com/catalystcommunity/enginectl/internal/process"
)

// LimitExceededError is returned by Add when the registry is already at
// MaxInstances.
type LimitExceededError struct{ Max int }

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("maximum of %d instances reached", e.Max)
}

// PortInUseError is returned by Add when the requested port collides with
// an existing instance.
type PortInUseError struct {
	Port           int
	ExistingID string
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("Port %d already in use by instance %s", e.Port, e.ExistingID)
}

// HandleFactory constructs a fresh, idle process.Handle bound to the
// currently installed engine. Injected so tests can substitute a fake.
type HandleFactory func() *process.Handle

// Registry is the thread-safe keyed collection of instance State described
// in spec §4.2. A single mutex guards the map; blocking work (process
// spawn/kill) is always performed with the lock released.
type Registry struct {
	mu            sync.Mutex
	instances     map[string]*State
	maxInstances  int
	portRangeEnd  int
	newHandle     HandleFactory
}

// NewRegistry constructs an empty registry bounded by maxInstances, using
// newHandle to create a process handle for each newly added instance.
func NewRegistry(maxInstances, portRangeEnd int, newHandle HandleFactory) *Registry {
	return &Registry{
		instances:    make(map[string]*State),
		maxInstances: maxInstances,
		portRangeEnd: portRangeEnd,
		newHandle:    newHandle,
	}
}

// Add registers a new instance and returns its derived id. Fails with
// *LimitExceededError or *PortInUseError without mutating state.
func (r *Registry) Add(cfg InstanceConfig) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.instances) >= r.maxInstances {
		return "", &LimitExceededError{Max: r.maxInstances}
	}
	for _, s := range r.instances {
		if s.Config.Port == cfg.Port {
			return "", &PortInUseError{Port: cfg.Port, ExistingID: s.InstanceID}
		}
	}

	id := cfg.idBase()
	base := id
	for counter := 2; ; counter++ {
		if _, exists := r.instances[id]; !exists {
			break
		}
		id = base + "_" + strconv.Itoa(counter)
	}

	r.instances[id] = &State{
		InstanceID: id,
		Config:     cfg,
		Handle:     r.newHandle(),
		Status:     StatusStopped,
	}
	logRegistryEvent("instance added", map[string]interface{}{"instance_id": id, "port": cfg.Port})
	return id, nil
}

// Remove stops the instance (outside the lock, if running) then deletes
// it. Returns false if the id is unknown.
func (r *Registry) Remove(id string, progress process.ProgressSink) bool {
	r.mu.Lock()
	state, ok := r.instances[id]
	r.mu.Unlock()
	if !ok {
		return false
	}

	if state.Handle.IsRunning() {
		metrics.RecordInstanceStop(state.Handle.Stop(progress))
	}

	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
	metrics.SetInstancesRunning(float64(r.RunningCount()))
	logRegistryEvent("instance removed", map[string]interface{}{"instance_id": id})
	return true
}

// Start transitions the instance through starting -> running|error. Start
// calls for different ids proceed in parallel; concurrent starts for the
// same id are serialized by the handle itself (a second call observes
// IsRunning and returns true immediately).
func (r *Registry) Start(id string, progress process.ProgressSink, logSink process.LogSink) bool {
	r.mu.Lock()
	state, ok := r.instances[id]
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.setStatus(id, StatusStarting)

	cfg := state.Config
	var cuda *string
	if cfg.Device.IsCPU() {
		empty := ""
		cuda = &empty
	} else {
		v := cfg.Device.CUDAVisibleDevices()
		cuda = &v
	}

	ok2 := state.Handle.Start(process.StartParams{
		Host:         cfg.Host,
		Port:         cfg.Port,
		VramFlags:    cfg.VramMode.Flags(),
		ExtraArgs:    cfg.ExtraArgs,
		CUDADevice:   cuda,
		LogPrefix:    cfg.LogPrefix(),
		LogSink:      logSink,
		ProgressSink: progress,
	})

	if ok2 {
		r.setStatus(id, StatusRunning)
	} else {
		r.setStatus(id, StatusError)
	}
	metrics.RecordInstanceStart(ok2)
	metrics.SetInstancesRunning(float64(r.RunningCount()))
	return ok2
}

// Stop stops a running instance and marks it stopped. A no-op success if
// already stopped.
func (r *Registry) Stop(id string, progress process.ProgressSink) bool {
	r.mu.Lock()
	state, ok := r.instances[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if !state.Handle.IsRunning() {
		return true
	}
	ok2 := state.Handle.Stop(progress)
	if ok2 {
		r.setStatus(id, StatusStopped)
	}
	metrics.RecordInstanceStop(ok2)
	metrics.SetInstancesRunning(float64(r.RunningCount()))
	return ok2
}

// StopAll snapshots the running set under the lock, then stops each
// outside the lock. Returns true iff every stop succeeded.
func (r *Registry) StopAll(progress process.ProgressSink) bool {
	r.mu.Lock()
	running := make([]*State, 0)
	for _, s := range r.instances {
		if s.Handle.IsRunning() {
			running = append(running, s)
		}
	}
	r.mu.Unlock()

	allOK := true
	for _, s := range running {
		ok := s.Handle.Stop(progress)
		metrics.RecordInstanceStop(ok)
		if ok {
			r.setStatus(s.InstanceID, StatusStopped)
		} else {
			allOK = false
		}
	}
	metrics.SetInstancesRunning(float64(r.RunningCount()))
	return allOK
}

func (r *Registry) setStatus(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.instances[id]; ok {
		s.Status = status
	}
}

// Get returns the instance state for id, or nil if unknown.
func (r *Registry) Get(id string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances[id]
}

// List returns a snapshot of every registered instance.
func (r *Registry) List() []*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*State, 0, len(r.instances))
	for _, s := range r.instances {
		out = append(out, s)
	}
	return out
}

// RunningCount returns the number of instances whose handle reports alive.
func (r *Registry) RunningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.instances {
		if s.Handle.IsRunning() {
			count++
		}
	}
	return count
}

// AnyRunning reports whether at least one instance is alive.
func (r *Registry) AnyRunning() bool {
	return r.RunningCount() > 0
}

// NextAvailablePort returns the first port in [base, portRangeEnd] not held
// by any registered instance, or portRangeEnd+1 if the range is saturated.
func (r *Registry) NextAvailablePort(base int) int {
	r.mu.Lock()
	used := make(map[int]struct{}, len(r.instances))
	for _, s := range r.instances {
		used[s.Config.Port] = struct{}{}
	}
	r.mu.Unlock()

	port := base
	for port <= r.portRangeEnd {
		if _, taken := used[port]; !taken {
			return port
		}
		port++
	}
	return port
}

func logRegistryEvent(msg string, fields map[string]interface{}) {
	entry := logging.Log.WithField("component", "instance_registry")
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Info(msg)
}
