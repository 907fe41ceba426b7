// Package collaborators provides concrete implementations of the external
// collaborator contracts the core consumes (spec §6.5): Installer,
// AssetDownloader, PluginManager, GpuProbe.
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

const engineRepoURL = "https://github.com/comfyanonymous/ComfyUI"

// Installer clones, updates, and purges the engine checkout, and installs
// its Python dependencies with the portable interpreter, grounded on
// original_source/core/comfy_installer.py + python_manager.py + venv_manager.py.
type Installer struct {
	env environment.Environment
	git string
}

// NewInstaller builds an Installer bound to env, using env.GitPortableDir
// for the git binary unless the system git is requested via an empty
// portable dir.
func NewInstaller(env environment.Environment) *Installer {
	git := "git"
	if env.GitPortableDir != "" {
		candidate := filepath.Join(env.GitPortableDir, "cmd", "git")
		if _, err := os.Stat(candidate); err == nil {
			git = candidate
		}
	}
	return &Installer{env: env, git: git}
}

func (i *Installer) engineEntry() string {
	return filepath.Join(i.env.ActiveEngineDir(), "main.py")
}

func (i *Installer) requirementsFile() string {
	return filepath.Join(i.env.ActiveEngineDir(), "requirements.txt")
}

// IsInstalled reports whether the engine entry file exists.
func (i *Installer) IsInstalled() bool {
	_, err := os.Stat(i.engineEntry())
	return err == nil
}

// IsExternal reports whether the active engine dir differs from the
// managed install directory.
func (i *Installer) IsExternal() bool {
	if i.env.ExternalEngineDir == "" {
		return false
	}
	activeAbs, err1 := filepath.Abs(i.env.ActiveEngineDir())
	managedAbs, err2 := filepath.Abs(i.env.EngineDir)
	if err1 != nil || err2 != nil {
		return false
	}
	return activeAbs != managedAbs
}

// CheckInstallation reports the four on-disk installation markers.
func (i *Installer) CheckInstallation() supervisor.InstallationStatus {
	_, envErr := os.Stat(i.env.InterpreterPath)
	_, reqErr := os.Stat(i.requirementsFile())
	_, modelsErr := os.Stat(i.env.ModelsDir)
	return supervisor.InstallationStatus{
		EnvReady:              envErr == nil,
		EngineInstalled:       i.IsInstalled(),
		RequirementsInstalled: reqErr == nil,
		ModelsDirExists:       modelsErr == nil,
	}
}

// FullInstall clones the engine (if absent) and installs its requirements.
func (i *Installer) FullInstall(progress supervisor.ProgressFunc) error {
	if i.IsInstalled() {
		progress(50, 100, "engine already installed")
	} else {
		progress(0, 100, "cloning engine repository...")
		if err := i.clone(); err != nil {
			return fmt.Errorf("clone failed: %w", err)
		}
	}

	progress(60, 100, "creating model directories...")
	if err := os.MkdirAll(i.env.ModelsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	progress(70, 100, "installing requirements...")
	if err := i.installRequirements(progress); err != nil {
		return fmt.Errorf("requirements install failed: %w", err)
	}

	progress(100, 100, "install complete")
	return nil
}

// InstallSageAttention installs the optional accelerator package via pip.
func (i *Installer) InstallSageAttention(progress supervisor.ProgressFunc) error {
	progress(0, 100, "installing sage-attention...")
	cmd := exec.Command(i.env.InterpreterPath, "-m", "pip", "install", "sageattention")
	cmd.Dir = i.env.ActiveEngineDir()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install sageattention: %w: %s", err, string(out))
	}
	progress(100, 100, "sage-attention installed")
	return nil
}

// Update pulls the latest engine commit and reinstalls requirements.
func (i *Installer) Update(progress supervisor.ProgressFunc) error {
	if !i.IsInstalled() {
		return fmt.Errorf("engine not installed")
	}
	progress(0, 100, "pulling latest engine commit...")
	cmd := exec.Command(i.git, "pull")
	cmd.Dir = i.env.ActiveEngineDir()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git pull: %w: %s", err, string(out))
	}
	progress(60, 100, "reinstalling requirements...")
	if err := i.installRequirements(progress); err != nil {
		return err
	}
	progress(100, 100, "update complete")
	return nil
}

// Purge removes the engine checkout, preserving the models directory.
func (i *Installer) Purge(progress supervisor.ProgressFunc) error {
	progress(0, 100, "removing engine...")
	if err := os.RemoveAll(i.env.ActiveEngineDir()); err != nil {
		return fmt.Errorf("failed to remove engine directory: %w", err)
	}
	progress(100, 100, "engine removed")
	return nil
}

// PurgeAll removes the engine checkout and the models directory.
func (i *Installer) PurgeAll(progress supervisor.ProgressFunc) error {
	if err := i.Purge(progress); err != nil {
		return err
	}
	progress(50, 100, "removing models...")
	if err := os.RemoveAll(i.env.ModelsDir); err != nil {
		return fmt.Errorf("failed to remove models directory: %w", err)
	}
	progress(100, 100, "purge complete")
	return nil
}

func (i *Installer) clone() error {
	if err := os.MkdirAll(filepath.Dir(i.env.EngineDir), 0o755); err != nil {
		return err
	}
	cmd := exec.Command(i.git, "clone", "--depth", "1", engineRepoURL, i.env.EngineDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		logging.Log.WithError(err).WithField("output", string(out)).Error("engine clone failed")
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}

func (i *Installer) installRequirements(progress supervisor.ProgressFunc) error {
	if _, err := os.Stat(i.requirementsFile()); err != nil {
		return fmt.Errorf("requirements.txt not found")
	}
	cmd := exec.Command(i.env.InterpreterPath, "-m", "pip", "install", "-r", i.requirementsFile())
	cmd.Dir = i.env.ActiveEngineDir()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}
