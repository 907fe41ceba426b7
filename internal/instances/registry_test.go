package instances

import (
	"testing"

	"github.com/catalystcommunity/enginectl/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(max, portEnd int) *Registry {
	return NewRegistry(max, portEnd, func() *process.Handle {
		return process.New(process.Config{})
	})
}

func mustConfig(t *testing.T, device Device, port int) InstanceConfig {
	cfg, err := NewInstanceConfig(device, "", port, "", VramNormal, nil)
	require.NoError(t, err)
	return cfg
}

func TestRegistryAdd_PortCollisionRejected(t *testing.T) {
	reg := newTestRegistry(8, 8199)

	_, err := reg.Add(mustConfig(t, GPU(0), 8188))
	require.NoError(t, err)

	_, err = reg.Add(mustConfig(t, GPU(1), 8188))
	require.Error(t, err)
	var portErr *PortInUseError
	assert.ErrorAs(t, err, &portErr)
	assert.Equal(t, 8188, portErr.Port)
}

func TestRegistryAdd_LimitExceeded(t *testing.T) {
	reg := newTestRegistry(2, 8199)

	_, err := reg.Add(mustConfig(t, GPU(0), 8188))
	require.NoError(t, err)
	_, err = reg.Add(mustConfig(t, GPU(1), 8189))
	require.NoError(t, err)

	_, err = reg.Add(mustConfig(t, GPU(2), 8190))
	require.Error(t, err)
	var limitErr *LimitExceededError
	assert.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Max)
}

func TestRegistryAdd_IDCollisionSuffix(t *testing.T) {
	reg := newTestRegistry(8, 8199)

	id1, err := reg.Add(mustConfig(t, CPU, 8188))
	require.NoError(t, err)
	// Occupy the id CPU:8189 derives, under a different port, so the next
	// Add has to fall back to the counter suffix.
	reg.instances["cpu_8189"] = &State{
		InstanceID: "cpu_8189",
		Config:     mustConfig(t, GPU(0), 8190),
		Handle:     process.New(process.Config{}),
		Status:     StatusStopped,
	}
	id2, err := reg.Add(mustConfig(t, CPU, 8189))
	require.NoError(t, err)

	assert.Equal(t, "cpu_8188", id1)
	assert.Equal(t, "cpu_8189_2", id2)
}

func TestRegistryRemove_UnknownIDReturnsFalse(t *testing.T) {
	reg := newTestRegistry(8, 8199)
	assert.False(t, reg.Remove("nope", process.NoopProgress))
}

func TestRegistryRemove_Succeeds(t *testing.T) {
	reg := newTestRegistry(8, 8199)
	id, err := reg.Add(mustConfig(t, CPU, 8188))
	require.NoError(t, err)

	assert.True(t, reg.Remove(id, process.NoopProgress))
	assert.Nil(t, reg.Get(id))
}

func TestRegistryNextAvailablePort(t *testing.T) {
	reg := newTestRegistry(8, 8190)
	_, err := reg.Add(mustConfig(t, GPU(0), 8188))
	require.NoError(t, err)

	assert.Equal(t, 8189, reg.NextAvailablePort(8188))
}

func TestRegistryNextAvailablePort_Saturated(t *testing.T) {
	reg := newTestRegistry(8, 8189)
	_, err := reg.Add(mustConfig(t, GPU(0), 8188))
	require.NoError(t, err)
	_, err = reg.Add(mustConfig(t, GPU(1), 8189))
	require.NoError(t, err)

	assert.Equal(t, 8190, reg.NextAvailablePort(8188))
}

func TestRegistryList_NoSharedPorts(t *testing.T) {
	reg := newTestRegistry(8, 8199)
	for i, port := range []int{8188, 8189, 8190} {
		_, err := reg.Add(mustConfig(t, GPU(i), port))
		require.NoError(t, err)
	}

	seen := make(map[int]bool)
	for _, s := range reg.List() {
		assert.False(t, seen[s.Config.Port], "port %d seen twice", s.Config.Port)
		seen[s.Config.Port] = true
	}
	assert.Len(t, seen, 3)
}

func TestRegistryAnyRunning_FalseWhenEmpty(t *testing.T) {
	reg := newTestRegistry(8, 8199)
	assert.False(t, reg.AnyRunning())
}
