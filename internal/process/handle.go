// Package process owns the spawn/readiness/log-pump/tree-kill lifecycle of
// a single engine child process.
package process

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProgressSink receives (current, total, message) updates from blocking
// operations. A nil sink is always safe to call through NoopProgress.
type ProgressSink func(current, total int, message string)

// NoopProgress tolerates callers that don't care about progress.
func NoopProgress(int, int, string) {}

// LogSink receives log lines from the child's merged stdout/stderr.
type LogSink func(line string)

// StartParams describes how to spawn the engine.
type StartParams struct {
	Host         string
	Port         int
	VramFlags    []string
	ExtraArgs    []string
	CUDADevice   *string // nil: CUDA_VISIBLE_DEVICES is removed from the inherited environment; "" for CPU; index otherwise
	LogPrefix    string
	LogSink      LogSink
	ProgressSink ProgressSink
}

// Handle owns exactly one OS child process for the engine. The zero value
// is a handle with no running child.
type Handle struct {
	mu sync.Mutex

	interpreter string
	engineEntry string
	engineDir   string
	gitBinDir   string
	ffmpegBinDir string

	cmd       *exec.Cmd
	exited    chan struct{} // closed by reap once cmd.Wait() has returned
	host      string
	port      int
	prefix    string
	logSink   LogSink

	readinessPollInterval time.Duration
	readinessTimeout      time.Duration
	httpProbeTimeout      time.Duration
}

// Config bundles the fixed, engine-install-derived settings a Handle needs
// at construction time, as opposed to the per-start parameters.
type Config struct {
	InterpreterPath string
	EngineEntry     string // absolute path to the engine's main entry file
	EngineDir       string
	GitBinDir       string
	FFmpegBinDir    string
}

// New creates an idle handle bound to a fixed engine installation.
func New(cfg Config) *Handle {
	return &Handle{
		interpreter:           cfg.InterpreterPath,
		engineEntry:           cfg.EngineEntry,
		engineDir:             cfg.EngineDir,
		gitBinDir:             cfg.GitBinDir,
		ffmpegBinDir:          cfg.FFmpegBinDir,
		readinessPollInterval: time.Second,
		readinessTimeout:      120 * time.Second,
		httpProbeTimeout:      2 * time.Second,
	}
}

// IsRunning reports whether the owned child exists and has not exited.
func (h *Handle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isRunningLocked()
}

func (h *Handle) isRunningLocked() bool {
	if h.cmd == nil || h.exited == nil {
		return false
	}
	// reap is the sole owner of cmd.Wait(); liveness is read off the
	// channel it closes rather than cmd.ProcessState, which only reap may
	// touch.
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// ServerURL returns the URL the child was last started with.
func (h *Handle) ServerURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("http://%s:%d", h.host, h.port)
}

// Start spawns the engine subprocess and blocks until it is ready, the
// readiness probe times out (optimistic success if still alive), or the
// child dies during startup. Safe to call from a worker-pool goroutine;
// it performs blocking I/O throughout.
func (h *Handle) Start(p StartParams) bool {
	if p.ProgressSink == nil {
		p.ProgressSink = NoopProgress
	}
	h.mu.Lock()
	if h.isRunningLocked() {
		h.mu.Unlock()
		p.ProgressSink(100, 100, "already running")
		return true
	}
	if _, err := os.Stat(h.engineEntry); err != nil {
		h.mu.Unlock()
		p.ProgressSink(0, 100, "error: engine not installed")
		return false
	}
	h.mu.Unlock()

	p.ProgressSink(0, 100, "starting engine...")

	args := []string{h.engineEntry, "--listen", p.Host, "--port", strconv.Itoa(p.Port)}
	args = append(args, p.VramFlags...)
	args = append(args, p.ExtraArgs...)

	cmd := exec.Command(h.interpreter, args...)
	cmd.Dir = h.engineDir
	cmd.Env = h.buildEnv(p.CUDADevice)
	setPlatformAttrs(cmd)

	// stdout and stderr are merged into a single pipe, mirroring the
	// source's subprocess.PIPE/STDOUT wiring.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		p.ProgressSink(0, 100, fmt.Sprintf("error: %v", err))
		return false
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stdoutW

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stdoutR.Close()
		p.ProgressSink(0, 100, fmt.Sprintf("error: %v", err))
		return false
	}

	exited := make(chan struct{})
	h.mu.Lock()
	h.cmd = cmd
	h.exited = exited
	h.host = p.Host
	h.port = p.Port
	h.prefix = p.LogPrefix
	h.logSink = p.LogSink
	h.mu.Unlock()

	stdoutW.Close() // parent's copy of the write end; child retains its own

	go h.reap(cmd, exited)
	go h.pumpLogs(stdoutR, p.LogPrefix, p.LogSink)

	p.ProgressSink(50, 100, "waiting for server to start...")

	if h.waitForReady(p.Port, p.Host) {
		p.ProgressSink(100, 100, fmt.Sprintf("server running at http://%s:%d", p.Host, p.Port))
		return true
	}
	if h.IsRunning() {
		p.ProgressSink(50, 100, "server still starting (process alive, not responding yet)")
		return true
	}
	p.ProgressSink(0, 100, "server process died during startup")
	return false
}

// buildEnv derives the child's environment: CUDA_VISIBLE_DEVICES per the
// device selection, with the portable git/ffmpeg bin directories prepended
// to PATH.
func (h *Handle) buildEnv(cudaDevice *string) []string {
	base := os.Environ()
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "CUDA_VISIBLE_DEVICES=") {
			continue
		}
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		env = append(env, kv)
	}
	if cudaDevice != nil {
		env = append(env, "CUDA_VISIBLE_DEVICES="+*cudaDevice)
	}

	var pathAdditions []string
	if h.gitBinDir != "" {
		if _, err := os.Stat(h.gitBinDir); err == nil {
			pathAdditions = append(pathAdditions, h.gitBinDir)
		}
	}
	if h.ffmpegBinDir != "" {
		if _, err := os.Stat(h.ffmpegBinDir); err == nil {
			pathAdditions = append(pathAdditions, h.ffmpegBinDir)
		}
	}
	origPath := os.Getenv("PATH")
	if len(pathAdditions) > 0 {
		env = append(env, "PATH="+strings.Join(pathAdditions, string(os.PathListSeparator))+string(os.PathListSeparator)+origPath)
	} else {
		env = append(env, "PATH="+origPath)
	}
	return env
}

// reap is the single owner of cmd.Wait() for the life of this child: no
// other goroutine (including killTree) may call Wait on the same *exec.Cmd,
// since a second concurrent Wait races on cmd.ProcessState and can return
// "already called" before the tree is actually dead. Locking/unlocking
// h.mu after Wait returns establishes a happens-before edge so any
// goroutine that subsequently acquires h.mu (isRunningLocked) observes the
// exit before exited is closed.
func (h *Handle) reap(cmd *exec.Cmd, exited chan struct{}) {
	_ = cmd.Wait()
	h.mu.Lock()
	h.mu.Unlock()
	close(exited)
}

// pumpLogs reads the merged stdout/stderr stream line by line, prefixing
// and forwarding each line until EOF.
func (h *Handle) pumpLogs(r io.ReadCloser, prefix string, sink LogSink) {
	defer r.Close()
	if sink == nil {
		io.Copy(io.Discard, r)
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if prefix != "" && !strings.HasPrefix(line, prefix) {
			line = prefix + " " + line
		}
		sink(line)
	}
}

// waitForReady polls /system_stats once per second for up to 120s. It
// returns true immediately on HTTP 200, swallows transient I/O errors as
// normal during startup, and returns false on timeout (the caller decides
// whether a still-alive child counts as optimistic success).
func (h *Handle) waitForReady(port int, host string) bool {
	deadline := time.Now().Add(h.readinessTimeout)
	client := &http.Client{Timeout: h.httpProbeTimeout}
	url := fmt.Sprintf("http://%s:%d/system_stats", host, port)

	for time.Now().Before(deadline) {
		if !h.IsRunning() {
			return false
		}
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(h.readinessPollInterval)
	}
	return false
}

// Stop kills the entire process tree. It returns true once the child is
// confirmed dead or was already not running.
func (h *Handle) Stop(sink ProgressSink) bool {
	if sink == nil {
		sink = NoopProgress
	}
	h.mu.Lock()
	if !h.isRunningLocked() {
		h.mu.Unlock()
		sink(100, 100, "server not running")
		return true
	}
	cmd := h.cmd
	exited := h.exited
	h.mu.Unlock()

	sink(0, 100, "stopping server...")

	ok := killTree(cmd, exited, 10*time.Second, 5*time.Second)

	h.mu.Lock()
	h.cmd = nil
	h.exited = nil
	h.host = ""
	h.port = 0
	h.prefix = ""
	h.logSink = nil
	h.mu.Unlock()

	if ok {
		sink(100, 100, "server stopped")
	} else {
		sink(0, 100, "error stopping server")
	}
	return ok
}

// Restart stops the child, waits two seconds, then starts it with p exactly
// as given. The previous host, port, device, prefix, and log sink are not
// carried over: zero-valued fields in p stay zero.
func (h *Handle) Restart(p StartParams) bool {
	h.Stop(NoopProgress)
	time.Sleep(2 * time.Second)
	return h.Start(p)
}
