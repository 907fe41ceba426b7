// Package environment resolves process configuration once at startup into
// an explicit value that is threaded through every component constructor,
// rather than read ad hoc from package-level globals.
package environment

import (
	"path/filepath"

	"github.com/catalystcommunity/app-utils-go/env"
)

// Environment holds every path, port, and capacity value the control plane
// needs. It is constructed once (from OS environment variables, optionally
// overridden by CLI flags) and passed by value or pointer to every
// collaborator and registry.
type Environment struct {
	// EngineDir is the root of the installed engine checkout.
	EngineDir string
	// ExternalEngineDir, when non-empty, points at a user-supplied engine
	// checkout outside the managed install tree.
	ExternalEngineDir string
	// InterpreterPath is the Python (or equivalent) interpreter used to
	// launch the engine and run installer/plugin operations.
	InterpreterPath string
	// GitPortableDir is the portable VCS tool directory prepended to PATH.
	GitPortableDir string
	// FFmpegPortableDir is the portable media tool directory prepended to PATH.
	FFmpegPortableDir string
	// ModelsDir is the default model asset directory.
	ModelsDir string
	// ExtraModelDirs are additional directories scanned for local assets.
	ExtraModelDirs []string
	// CustomNodesDir is where plug-ins are cloned.
	CustomNodesDir string

	// DefaultHost is the bind address used when a caller omits one.
	DefaultHost string
	// PortRangeStart/End bound next_available_port's linear scan.
	PortRangeStart int
	PortRangeEnd   int

	// MaxInstances caps InstanceRegistry size.
	MaxInstances int
	// MaxJobs caps JobRegistry size before terminal-record pruning kicks in.
	MaxJobs int
	// MaxLogHistory caps LogHub's ring buffer.
	MaxLogHistory int

	// SettingsPath is the on-disk location of the persisted settings document.
	SettingsPath string
	// SettingsSeedPath, when set, is a YAML defaults file used to seed
	// SettingsPath the first time the process runs against an empty store.
	SettingsSeedPath string

	// WorkerPoolSize bounds the number of OS threads executing blocking work.
	WorkerPoolSize int
}

// FromEnv resolves an Environment from OS environment variables, mirroring
// the defaults the engine's own config module ships with.
func FromEnv() Environment {
	engineDir := env.GetEnvOrDefault("ENGINE_DIR", "./engine")
	dataDir := env.GetEnvOrDefault("DATA_DIR", "./data")

	return Environment{
		EngineDir:         engineDir,
		ExternalEngineDir: env.GetEnvOrDefault("EXTERNAL_ENGINE_DIR", ""),
		InterpreterPath:   env.GetEnvOrDefault("INTERPRETER_PATH", filepath.Join(dataDir, "python_embedded", "python")),
		GitPortableDir:    env.GetEnvOrDefault("GIT_PORTABLE_DIR", filepath.Join(dataDir, "git_portable")),
		FFmpegPortableDir: env.GetEnvOrDefault("FFMPEG_PORTABLE_DIR", filepath.Join(dataDir, "ffmpeg_portable")),
		ModelsDir:         env.GetEnvOrDefault("MODELS_DIR", filepath.Join(engineDir, "models")),
		CustomNodesDir:    env.GetEnvOrDefault("CUSTOM_NODES_DIR", filepath.Join(engineDir, "custom_nodes")),

		DefaultHost:    env.GetEnvOrDefault("DEFAULT_HOST", "127.0.0.1"),
		PortRangeStart: env.GetEnvAsIntOrDefault("PORT_RANGE_START", "8188"),
		PortRangeEnd:   env.GetEnvAsIntOrDefault("PORT_RANGE_END", "8199"),

		MaxInstances:  env.GetEnvAsIntOrDefault("MAX_INSTANCES", "8"),
		MaxJobs:       env.GetEnvAsIntOrDefault("MAX_JOBS", "100"),
		MaxLogHistory: env.GetEnvAsIntOrDefault("MAX_LOG_HISTORY", "2000"),

		SettingsPath:     env.GetEnvOrDefault("SETTINGS_PATH", filepath.Join(dataDir, "settings.json")),
		SettingsSeedPath: env.GetEnvOrDefault("SETTINGS_SEED_PATH", ""),

		WorkerPoolSize: env.GetEnvAsIntOrDefault("WORKER_POOL_SIZE", "8"),
	}
}

// ActiveEngineDir returns the engine checkout currently in effect: the
// external override if set, otherwise the managed install directory.
func (e Environment) ActiveEngineDir() string {
	if e.ExternalEngineDir != "" {
		return e.ExternalEngineDir
	}
	return e.EngineDir
}

// ApplySettings overlays the persisted settings document's well-known keys
// ("active_engine_path", "extra_model_dirs") onto the environment. A
// non-empty value in the document overrides what FromEnv resolved from OS
// environment variables; the persisted document is the layer a running
// process's /comfyui/target and /settings endpoints mutate afterward
// (spec §6.6).
func (e *Environment) ApplySettings(doc map[string]interface{}) {
	if v, ok := doc["active_engine_path"].(string); ok && v != "" {
		e.ExternalEngineDir = v
	}
	if raw, ok := doc["extra_model_dirs"].([]interface{}); ok {
		dirs := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				dirs = append(dirs, s)
			}
		}
		e.ExtraModelDirs = dirs
	}
}
