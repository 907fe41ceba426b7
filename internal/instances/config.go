package instances

import "fmt"

// VramMode selects the engine's memory-management flag set.
type VramMode string

const (
	VramNormal VramMode = "normal"
	VramLow    VramMode = "low"
	VramNone   VramMode = "none"
	VramCPU    VramMode = "cpu"
)

// vramFlags maps a VramMode to the CLI flags appended to the engine's argv.
var vramFlags = map[VramMode][]string{
	VramNormal: {},
	VramLow:    {"--lowvram"},
	VramNone:   {"--novram"},
	VramCPU:    {"--cpu"},
}

// Flags returns the engine argv tokens this vram mode contributes.
func (m VramMode) Flags() []string {
	flags, ok := vramFlags[m]
	if !ok {
		return nil
	}
	return append([]string(nil), flags...)
}

func (m VramMode) valid() bool {
	_, ok := vramFlags[m]
	return ok
}

// forbiddenExtraArgs are the tokens InstanceConfig derives itself; a caller
// supplying them in extra_args would silently fight the derivation, so they
// are rejected at intake instead.
var forbiddenExtraArgs = []string{"--listen", "--port", "--lowvram", "--novram", "--cpu", "--highvram", "--normalvram"}

// InstanceConfig is the immutable configuration an instance is created
// with. Once added to an InstanceRegistry it is never mutated.
type InstanceConfig struct {
	Device     Device
	GPULabel   string
	Port       int
	Host       string
	VramMode   VramMode
	ExtraArgs  []string
}

// NewInstanceConfig validates and normalizes a requested instance
// configuration, applying the spec's CPU/vram coercion: a CPU device always
// forces vram_mode to "cpu" regardless of what was requested.
func NewInstanceConfig(device Device, gpuLabel string, port int, host string, vramMode VramMode, extraArgs []string) (InstanceConfig, error) {
	if port < 1024 || port > 65535 {
		return InstanceConfig{}, fmt.Errorf("port must be between 1024 and 65535")
	}
	if !vramMode.valid() {
		return InstanceConfig{}, fmt.Errorf("invalid vram_mode %q: choose from normal, low, none, cpu", vramMode)
	}
	if device.IsCPU() {
		vramMode = VramCPU
	}
	for _, a := range extraArgs {
		for _, forbidden := range forbiddenExtraArgs {
			if a == forbidden {
				return InstanceConfig{}, fmt.Errorf("extra_args must not include %s; it is derived automatically", forbidden)
			}
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if gpuLabel == "" {
		if device.IsCPU() {
			gpuLabel = "CPU"
		} else {
			gpuLabel = fmt.Sprintf("GPU %d", device.Index())
		}
	}
	return InstanceConfig{
		Device:    device,
		GPULabel:  gpuLabel,
		Port:      port,
		Host:      host,
		VramMode:  vramMode,
		ExtraArgs: append([]string(nil), extraArgs...),
	}, nil
}

// LogPrefix returns the bracketed prefix prepended to every log line this
// instance emits: "[CPU:<port>]" or "[GPU<index>:<port>]".
func (c InstanceConfig) LogPrefix() string {
	return fmt.Sprintf("[%s:%d]", c.Device.PrefixPart(), c.Port)
}

// idBase returns the instance-id component derived from device and port,
// before any collision suffix is applied.
func (c InstanceConfig) idBase() string {
	return fmt.Sprintf("%s_%d", c.Device.IDPart(), c.Port)
}
