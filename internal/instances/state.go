package instances

import (
	"strconv"

	"github.com/catalystcommunity/enginectl/internal/process"
)

// Status is an instance's runtime lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

// State is the mutable runtime record for one registered instance.
type State struct {
	InstanceID string
	Config     InstanceConfig
	Handle     *process.Handle
	Status     Status
}

// URL returns the address this instance's engine should be reachable at.
func (s *State) URL() string {
	return "http://" + s.Config.Host + ":" + strconv.Itoa(s.Config.Port)
}
