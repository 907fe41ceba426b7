package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/catalystcommunity/enginectl/internal/instances"
	"github.com/catalystcommunity/enginectl/internal/jobs"
	"github.com/catalystcommunity/enginectl/internal/loghub"
	"github.com/catalystcommunity/enginectl/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInstaller struct {
	fullInstallErr error
	purgeErr       error
	purgeAllErr    error
	installed      bool
}

func (f *fakeInstaller) FullInstall(p ProgressFunc) error             { p(100, 100, "done"); return f.fullInstallErr }
func (f *fakeInstaller) Update(p ProgressFunc) error                  { return nil }
func (f *fakeInstaller) Purge(p ProgressFunc) error                   { return f.purgeErr }
func (f *fakeInstaller) PurgeAll(p ProgressFunc) error                { return f.purgeAllErr }
func (f *fakeInstaller) InstallSageAttention(p ProgressFunc) error    { return nil }
func (f *fakeInstaller) IsInstalled() bool                            { return f.installed }
func (f *fakeInstaller) IsExternal() bool                             { return false }
func (f *fakeInstaller) CheckInstallation() InstallationStatus        { return InstallationStatus{} }

type fakeDownloader struct{}

func (f *fakeDownloader) Status(asset string) string { return "available" }
func (f *fakeDownloader) Exists(asset string) bool   { return false }
func (f *fakeDownloader) DownloadMultiple(assets []string, p ProgressFunc) map[string]bool {
	out := make(map[string]bool, len(assets))
	for i, a := range assets {
		p(i, len(assets), a)
		out[a] = a != "bad-asset"
	}
	return out
}
func (f *fakeDownloader) ScanLocal() map[string][]string { return nil }
func (f *fakeDownloader) Search(query string, limit int) ([]map[string]interface{}, error) {
	return nil, nil
}

type fakePlugins struct{ removed []string }

func (f *fakePlugins) Status(node string) string               { return "installed" }
func (f *fakePlugins) ListInstalled() []map[string]interface{} { return nil }
func (f *fakePlugins) InstallMultiple(nodes []string, p ProgressFunc) map[string]bool {
	out := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		out[n] = true
	}
	return out
}
func (f *fakePlugins) UpdateOne(name string) bool { return name != "broken-node" }
func (f *fakePlugins) UpdateAll(p ProgressFunc) map[string]bool {
	return map[string]bool{"node-a": true}
}
func (f *fakePlugins) Remove(name string) bool {
	if name == "missing" {
		return false
	}
	f.removed = append(f.removed, name)
	return true
}

type fakeGPUs struct{}

func (f *fakeGPUs) Detect() []GpuInfo { return nil }

func newTestFacade(t *testing.T, installer *fakeInstaller) (*Facade, *fakePlugins) {
	t.Helper()
	reg := instances.NewRegistry(8, 8300, func() *process.Handle {
		return process.New(process.Config{})
	})
	plugins := &fakePlugins{}
	f := New(reg, jobs.NewRegistry(50), loghub.New(50), installer, &fakeDownloader{}, plugins, &fakeGPUs{}, 4)
	t.Cleanup(f.Shutdown)
	return f, plugins
}

func waitForTerminal(t *testing.T, f *Facade, jobID string) *jobs.Record {
	t.Helper()
	var rec *jobs.Record
	require.Eventually(t, func() bool {
		rec = f.Jobs.Get(jobID)
		if rec == nil {
			return false
		}
		status := rec.Snapshot().Status
		return status == jobs.StatusCompleted || status == jobs.StatusFailed
	}, time.Second, 5*time.Millisecond)
	return rec
}

func TestFacade_InstallFull_SucceedsAsJob(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})

	rec := f.InstallFull()
	done := waitForTerminal(t, f, rec.JobID)

	assert.Equal(t, jobs.StatusCompleted, done.Snapshot().Status)
}

func TestFacade_InstallFull_FailurePropagatesToJob(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{fullInstallErr: errors.New("disk full")})

	rec := f.InstallFull()
	done := waitForTerminal(t, f, rec.JobID)

	snap := done.Snapshot()
	assert.Equal(t, jobs.StatusFailed, snap.Status)
	assert.Equal(t, "disk full", snap.Error)
}

func TestFacade_DownloadModels_AggregatesSuccessAndFailure(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})

	rec := f.DownloadModels([]string{"good-asset", "bad-asset"})
	done := waitForTerminal(t, f, rec.JobID)

	result, ok := done.Snapshot().Result.(jobs.AggregateResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failed)
}

func TestFacade_UpdateNodes_AggregatesPerNode(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})

	rec := f.UpdateNodes([]string{"node-a", "broken-node"})
	done := waitForTerminal(t, f, rec.JobID)

	result := done.Snapshot().Result.(jobs.AggregateResult)
	assert.True(t, result.Details["node-a"])
	assert.False(t, result.Details["broken-node"])
}

func TestFacade_RemoveNode_SynchronousResult(t *testing.T) {
	f, plugins := newTestFacade(t, &fakeInstaller{})

	assert.True(t, f.RemoveNode("custom-node"))
	assert.Contains(t, plugins.removed, "custom-node")
	assert.False(t, f.RemoveNode("missing"))
}

func TestFacade_Purge_StopsInstancesAndDelegates(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})
	require.NoError(t, f.Purge())
}

func TestFacade_Purge_PropagatesInstallerError(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{purgeErr: errors.New("busy")})
	assert.EqualError(t, f.Purge(), "busy")
}

func TestFacade_AddAndRemoveInstance(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})
	cfg, err := instances.NewInstanceConfig(instances.CPU, "", 8201, "", instances.VramNormal, nil)
	require.NoError(t, err)

	id, err := f.AddInstance(cfg)
	require.NoError(t, err)
	require.NotNil(t, f.Instances.Get(id))

	assert.True(t, f.RemoveInstance(id))
	assert.Nil(t, f.Instances.Get(id))
}

func TestFacade_StartInstance_UnknownIDReturnsErrNotFound(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})
	_, err := f.StartInstance("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFacade_StopAll_NoRunningInstancesIsNoop(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})
	assert.True(t, f.StopAll())
}

func TestFacade_StartAll_NoInstancesReturnsEmptyAggregate(t *testing.T) {
	f, _ := newTestFacade(t, &fakeInstaller{})
	agg := f.StartAll()
	assert.Equal(t, 0, agg.Success)
	assert.Equal(t, 0, agg.Failed)
}
