package collaborators

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/environment"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
)

// PluginManager clones, updates, and removes custom-node plug-ins under
// CustomNodesDir via git, grounded on original_source's
// core/custom_node_manager.py contract as used by api/routes/nodes.py.
type PluginManager struct {
	env environment.Environment
	git string
}

// NewPluginManager builds a PluginManager bound to env.
func NewPluginManager(env environment.Environment) *PluginManager {
	git := "git"
	if env.GitPortableDir != "" {
		candidate := filepath.Join(env.GitPortableDir, "cmd", "git")
		if _, err := os.Stat(candidate); err == nil {
			git = candidate
		}
	}
	return &PluginManager{env: env, git: git}
}

func (m *PluginManager) nodeDir(name string) string {
	return filepath.Join(m.env.CustomNodesDir, name)
}

// Status reports "installed" or "not_installed" for a plug-in name.
func (m *PluginManager) Status(name string) string {
	if _, err := os.Stat(m.nodeDir(name)); err == nil {
		return "installed"
	}
	return "not_installed"
}

// ListInstalled returns one record per directory under CustomNodesDir.
func (m *PluginManager) ListInstalled() []map[string]interface{} {
	entries, err := os.ReadDir(m.env.CustomNodesDir)
	if err != nil {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, map[string]interface{}{"name": e.Name(), "status": "installed"})
		}
	}
	return out
}

// InstallMultiple clones each requested plug-in, reporting per-node success
// keyed by the requested value. A value matching a NodeRegistry id is cloned
// from that entry's repo into a directory named after the id; any other
// value is treated as a git URL and cloned into a directory named after its
// last path element.
func (m *PluginManager) InstallMultiple(nodes []string, progress supervisor.ProgressFunc) map[string]bool {
	results := make(map[string]bool, len(nodes))
	for i, node := range nodes {
		repoURL, name := node, filepath.Base(node)
		for _, n := range NodeRegistry {
			if n.ID == node {
				repoURL, name = n.Repo, n.ID
				break
			}
		}
		progress(i, len(nodes), fmt.Sprintf("installing %s...", name))
		if err := m.clone(repoURL, name); err != nil {
			logging.Log.WithError(err).WithField("node", name).Warn("plugin install failed")
			results[node] = false
			continue
		}
		results[node] = true
	}
	progress(len(nodes), len(nodes), "install batch complete")
	return results
}

func (m *PluginManager) clone(repoURL, name string) error {
	if _, err := os.Stat(m.nodeDir(name)); err == nil {
		return nil // already installed
	}
	if err := os.MkdirAll(m.env.CustomNodesDir, 0o755); err != nil {
		return err
	}
	cmd := exec.Command(m.git, "clone", "--depth", "1", repoURL, m.nodeDir(name))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}

// UpdateOne pulls the latest commit for a single installed plug-in.
func (m *PluginManager) UpdateOne(name string) bool {
	cmd := exec.Command(m.git, "pull")
	cmd.Dir = m.nodeDir(name)
	if err := cmd.Run(); err != nil {
		logging.Log.WithError(err).WithField("node", name).Warn("plugin update failed")
		return false
	}
	return true
}

// UpdateAll pulls every installed plug-in, reporting per-node success.
func (m *PluginManager) UpdateAll(progress supervisor.ProgressFunc) map[string]bool {
	installed := m.ListInstalled()
	results := make(map[string]bool, len(installed))
	for i, rec := range installed {
		name := rec["name"].(string)
		progress(i, len(installed), fmt.Sprintf("updating %s...", name))
		results[name] = m.UpdateOne(name)
	}
	progress(len(installed), len(installed), "update batch complete")
	return results
}

// Remove deletes an installed plug-in's directory.
func (m *PluginManager) Remove(name string) bool {
	if err := os.RemoveAll(m.nodeDir(name)); err != nil {
		logging.Log.WithError(err).WithField("node", name).Warn("plugin removal failed")
		return false
	}
	return true
}
