// Package cmd wires the Environment, collaborators, registries, and
// façade into the CLI surface described in spec §6.4: one mutually
// exclusive primary mode per invocation, sharing the same construction
// path the HTTP server uses.
package cmd

import (
	"path/filepath"

	"github.com/catalystcommunity/enginectl/internal/collaborators"
	"github.com/catalystcommunity/enginectl/internal/environment"
	"github.com/catalystcommunity/enginectl/internal/instances"
	"github.com/catalystcommunity/enginectl/internal/jobs"
	"github.com/catalystcommunity/enginectl/internal/loghub"
	"github.com/catalystcommunity/enginectl/internal/process"
	"github.com/catalystcommunity/enginectl/internal/settings"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
)

// components bundles everything built from an Environment: the façade plus
// the settings store both the CLI and the HTTP server need.
type components struct {
	Env      environment.Environment
	Facade   *supervisor.Facade
	Settings *settings.Store
}

// bootstrap resolves the environment from the process's OS variables,
// overlays the persisted settings document on top, and constructs every
// collaborator, registry, and the façade that sits over them.
func bootstrap() (*components, error) {
	env := environment.FromEnv()

	store := settings.New(env.SettingsPath)
	doc, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		if seedPath := env.SettingsSeedPath; seedPath != "" {
			seed, seedErr := settings.LoadYAMLSeed(seedPath)
			if seedErr != nil {
				return nil, seedErr
			}
			if len(seed) > 0 {
				if doc, err = store.Merge(seed); err != nil {
					return nil, err
				}
			}
		}
	}
	env.ApplySettings(doc)

	installer := collaborators.NewInstaller(env)
	downloader := collaborators.NewDownloader(env)
	plugins := collaborators.NewPluginManager(env)
	gpus := collaborators.NewGpuProbe()

	newHandle := func() *process.Handle {
		return process.New(process.Config{
			InterpreterPath: env.InterpreterPath,
			EngineEntry:     filepath.Join(env.ActiveEngineDir(), "main.py"),
			EngineDir:       env.ActiveEngineDir(),
			GitBinDir:       env.GitPortableDir,
			FFmpegBinDir:    env.FFmpegPortableDir,
		})
	}

	instanceReg := instances.NewRegistry(env.MaxInstances, env.PortRangeEnd, newHandle)
	jobReg := jobs.NewRegistry(env.MaxJobs)
	logHub := loghub.New(env.MaxLogHistory)

	facade := supervisor.New(instanceReg, jobReg, logHub, installer, downloader, plugins, gpus, env.WorkerPoolSize)

	return &components{Env: env, Facade: facade, Settings: store}, nil
}
