package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/handlers"
	"github.com/catalystcommunity/enginectl/internal/instances"
	"github.com/catalystcommunity/enginectl/internal/process"
	"github.com/urfave/cli/v2"
)

// App builds the single-command CLI surface of spec §6.4: one mutually
// exclusive primary mode (--install/--start/--stop/--purge/--purge-all/--api)
// plus the secondary flags each mode reads.
func App() *cli.App {
	return &cli.App{
		Name:  "enginectl",
		Usage: "supervise a local inference engine installation",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "install", Usage: "run a full installation"},
			&cli.BoolFlag{Name: "start", Usage: "start an engine instance"},
			&cli.BoolFlag{Name: "stop", Usage: "stop all engine instances"},
			&cli.BoolFlag{Name: "purge", Usage: "remove the engine checkout, keeping models"},
			&cli.BoolFlag{Name: "purge-all", Usage: "remove the engine checkout and models"},
			&cli.BoolFlag{Name: "api", Usage: "run the REST/WebSocket API server"},
			&cli.IntFlag{Name: "port", Value: 8188, Usage: "engine instance port"},
			&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "engine instance bind host"},
			&cli.StringFlag{Name: "vram", Value: "normal", Usage: "vram mode: normal, low, none, cpu"},
			&cli.StringFlag{Name: "gpu", Usage: "GPU device index, or \"cpu\"; when omitted the instance runs on the CPU"},
			&cli.IntFlag{Name: "api-port", Value: 5000, Usage: "API server port"},
			&cli.StringFlag{Name: "api-host", Value: "127.0.0.1", Usage: "API server bind host"},
			&cli.StringFlag{Name: "comfyui-dir", Usage: "path to an external engine installation to manage"},
		},
		Action: runMode,
	}
}

func runMode(c *cli.Context) error {
	comps, err := bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if dir := c.String("comfyui-dir"); dir != "" {
		if _, statErr := os.Stat(dir + "/main.py"); statErr != nil {
			return fmt.Errorf("no main.py found in %s: please specify a valid engine installation directory", dir)
		}
		doc, mergeErr := comps.Settings.Merge(map[string]interface{}{"active_engine_path": dir})
		if mergeErr != nil {
			return mergeErr
		}
		comps.Env.ApplySettings(doc)
	}

	switch {
	case c.Bool("api"):
		return runAPI(comps, c)
	case c.Bool("install"):
		return runInstall(comps)
	case c.Bool("start"):
		return runStart(comps, c)
	case c.Bool("stop"):
		return runStop(comps)
	case c.Bool("purge"):
		return runPurge(comps, false)
	case c.Bool("purge-all"):
		return runPurge(comps, true)
	default:
		return cli.ShowAppHelp(c)
	}
}

func runInstall(comps *components) error {
	fmt.Println("Full installation")
	fmt.Println(strings.Repeat("=", 40))

	err := comps.Facade.Installer.FullInstall(progressBar)
	fmt.Println()
	if err != nil {
		fmt.Printf("\nInstallation failed: %s\n", err.Error())
		return err
	}
	fmt.Println("\nInstallation completed successfully!")
	return nil
}

func runStart(comps *components, c *cli.Context) error {
	if !comps.Facade.Installer.IsInstalled() {
		return fmt.Errorf("engine is not installed; run with --install first")
	}

	device := instances.CPU
	if raw := c.String("gpu"); raw != "" {
		d, err := instances.ParseDevice(raw)
		if err != nil {
			return err
		}
		device = d
	}

	cfg, err := instances.NewInstanceConfig(device, "", c.Int("port"), c.String("host"), instances.VramMode(c.String("vram")), nil)
	if err != nil {
		return err
	}

	id, err := comps.Facade.AddInstance(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Starting engine instance on %s:%d...\n", cfg.Host, cfg.Port)
	state, err := comps.Facade.StartInstance(id)
	if err != nil {
		return err
	}
	if state.Status != instances.StatusRunning {
		return fmt.Errorf("failed to start instance")
	}
	fmt.Printf("Instance running at %s\n", state.URL())
	return nil
}

func runStop(comps *components) error {
	fmt.Println("Stopping all engine instances...")
	if !comps.Facade.StopAll() {
		return fmt.Errorf("one or more instances failed to stop")
	}
	fmt.Println("Stopped.")
	return nil
}

func runPurge(comps *components, all bool) error {
	if all {
		fmt.Println("FULL PURGE: this deletes the engine checkout AND all models.")
	} else {
		fmt.Println("Purge: this deletes the engine checkout, keeping the Python environment and models.")
	}
	fmt.Print("Are you sure? (yes/no): ")
	var response string
	fmt.Scanln(&response)
	if strings.ToLower(strings.TrimSpace(response)) != "yes" {
		fmt.Println("Purge cancelled.")
		return nil
	}

	var err error
	if all {
		err = comps.Facade.PurgeAll()
	} else {
		err = comps.Facade.Purge()
	}
	if err != nil {
		fmt.Printf("Purge failed: %s\n", err.Error())
		return err
	}
	fmt.Println("Purge completed successfully!")
	return nil
}

func runAPI(comps *components, c *cli.Context) error {
	router := handlers.NewRouter(&handlers.API{
		Facade:   comps.Facade,
		Env:      &comps.Env,
		Settings: comps.Settings,
	})

	addr := fmt.Sprintf("%s:%d", c.String("api-host"), c.Int("api-port"))
	logging.Log.Infof("starting API server on %s", addr)

	server := &http.Server{Addr: addr, Handler: router}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Log.Info("shutdown signal received, stopping instances and worker pool")
		comps.Facade.Instances.StopAll(process.NoopProgress)
		comps.Facade.Shutdown()
		comps.Facade.Logs.Shutdown()
		os.Exit(0)
	}()

	return server.ListenAndServe()
}

func progressBar(current, total int, message string) {
	const barLength = 30
	if total > 0 {
		frac := float64(current) / float64(total)
		filled := int(barLength * frac)
		bar := strings.Repeat("=", filled) + strings.Repeat("-", barLength-filled)
		fmt.Printf("\r[%s] %d%% %s", bar, int(frac*100), message)
	} else {
		fmt.Printf("\r%s", message)
	}
}
