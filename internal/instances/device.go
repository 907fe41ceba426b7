package instances

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Device is the tagged union of "run on the CPU" and "run pinned to GPU
// index N", replacing the source's overloaded string field
// ("cpu" or a decimal index) with a closed Go type.
type Device struct {
	cpu   bool
	index int
}

// CPU is the sentinel device value meaning "no GPU, CUDA disabled".
var CPU = Device{cpu: true}

// GPU returns a device pinned to the given GPU index.
func GPU(index int) Device {
	return Device{index: index}
}

// ParseDevice accepts the wire shapes the HTTP layer receives: the literal
// string "cpu", or a decimal GPU index (as a string or a JSON number).
func ParseDevice(raw string) (Device, error) {
	if raw == "cpu" {
		return CPU, nil
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return Device{}, fmt.Errorf("invalid gpu_device %q: must be \"cpu\" or an integer index", raw)
	}
	if idx < 0 {
		return Device{}, fmt.Errorf("invalid gpu_device %q: index must be non-negative", raw)
	}
	return GPU(idx), nil
}

// IsCPU reports whether the device is the CPU sentinel.
func (d Device) IsCPU() bool { return d.cpu }

// Index returns the GPU index; only meaningful when !IsCPU().
func (d Device) Index() int { return d.index }

// CUDAVisibleDevices returns the value the engine's environment should carry
// for CUDA_VISIBLE_DEVICES: "" for CPU, the decimal index for a GPU. The
// caller is responsible for leaving the variable unset entirely when no
// device was supplied at all (a nil *Device), per spec.
func (d Device) CUDAVisibleDevices() string {
	if d.cpu {
		return ""
	}
	return strconv.Itoa(d.index)
}

// IDPart returns the device's contribution to an instance id: "cpu" or
// "gpu<index>".
func (d Device) IDPart() string {
	if d.cpu {
		return "cpu"
	}
	return "gpu" + strconv.Itoa(d.index)
}

// PrefixPart returns the device's contribution to a log prefix: "CPU" or
// "GPU<index>".
func (d Device) PrefixPart() string {
	if d.cpu {
		return "CPU"
	}
	return "GPU" + strconv.Itoa(d.index)
}

// String implements fmt.Stringer with the wire shape ("cpu" or the index).
func (d Device) String() string {
	if d.cpu {
		return "cpu"
	}
	return strconv.Itoa(d.index)
}

func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Device) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.Itoa(int(v))
	default:
		return fmt.Errorf("gpu_device must be a string or number")
	}
	parsed, err := ParseDevice(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
