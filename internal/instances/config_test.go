package instances

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstanceConfig_CPUDeviceForcesCPUVram(t *testing.T) {
	cfg, err := NewInstanceConfig(CPU, "", 8188, "", VramLow, nil)
	require.NoError(t, err)
	assert.Equal(t, VramCPU, cfg.VramMode)
}

func TestNewInstanceConfig_InvalidPortRejected(t *testing.T) {
	_, err := NewInstanceConfig(GPU(0), "", 80, "", VramNormal, nil)
	assert.Error(t, err)
}

func TestNewInstanceConfig_InvalidVramModeRejected(t *testing.T) {
	_, err := NewInstanceConfig(GPU(0), "", 8188, "", VramMode("turbo"), nil)
	assert.Error(t, err)
}

func TestNewInstanceConfig_ForbiddenExtraArgRejected(t *testing.T) {
	_, err := NewInstanceConfig(GPU(0), "", 8188, "", VramNormal, []string{"--port"})
	assert.Error(t, err)
}

func TestNewInstanceConfig_DefaultsHostAndLabel(t *testing.T) {
	cfg, err := NewInstanceConfig(GPU(2), "", 8188, "", VramNormal, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "GPU 2", cfg.GPULabel)
}

func TestDevice_ParseDevice(t *testing.T) {
	cpu, err := ParseDevice("cpu")
	require.NoError(t, err)
	assert.True(t, cpu.IsCPU())

	gpu, err := ParseDevice("2")
	require.NoError(t, err)
	assert.False(t, gpu.IsCPU())
	assert.Equal(t, 2, gpu.Index())

	_, err = ParseDevice("not-a-number")
	assert.Error(t, err)

	_, err = ParseDevice("-1")
	assert.Error(t, err)
}

func TestDevice_CUDAVisibleDevices(t *testing.T) {
	assert.Equal(t, "", CPU.CUDAVisibleDevices())
	assert.Equal(t, "3", GPU(3).CUDAVisibleDevices())
}
