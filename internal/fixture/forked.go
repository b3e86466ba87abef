package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/st3v3nmw/replcheck/internal/cluster"
)

// Environment variables the forked nodes read their admin credentials from.
const (
	EnvAdminUser     = "REPLCHECK_ADMIN_USER"
	EnvAdminPassword = "REPLCHECK_ADMIN_PASSWORD"
)

// ForkedConfig configures reference nodes running as separate processes.
type ForkedConfig struct {
	Nodes int
	// Command starts one node; it receives "serve" and node flags. Defaults
	// to the running executable.
	Command     string
	WorkingDir  string
	HandlerPath string

	AdminUser     string
	AdminPassword string

	// StoreDriver must be shared across processes: sqlite or redis.
	StoreDriver string
	StoreDSN    string

	StartTimeout    time.Duration
	ShutdownTimeout time.Duration

	Logger log.Logger
}

// process is a running node
type process struct {
	name    string
	cmd     *exec.Cmd
	logFile *os.File
	port    int
	done    chan struct{}
}

// Forked starts each node as a child process in its own process group,
// logging to <working-dir>/run-<timestamp>/<node>.log.
type Forked struct {
	cfg        ForkedConfig
	logger     log.Logger
	workingDir string
	processes  []*process
}

// NewForked creates the fixture; nothing starts until Setup.
func NewForked(cfg ForkedConfig) *Forked {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Second
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = ".replcheck"
	}

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = cluster.DriverSQLite
	}

	return &Forked{cfg: cfg, logger: log.WithPrefix(logger, "component", "forked")}
}

func (f *Forked) Setup(ctx context.Context) ([]string, error) {
	if f.cfg.Nodes < 2 {
		return nil, fmt.Errorf("cluster needs at least 2 nodes, got %d", f.cfg.Nodes)
	}

	if f.cfg.StoreDriver == cluster.DriverMemory {
		return nil, errors.New("forked nodes cannot share a memory store")
	}

	command := f.cfg.Command
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate server command: %w", err)
		}
		command = exe
	}

	// Build working directory path with timestamp
	timestamp := time.Now().Format("20060102-150405")
	f.workingDir = filepath.Join(f.cfg.WorkingDir, fmt.Sprintf("run-%s", timestamp))
	if err := os.MkdirAll(f.workingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	storeDSN := f.cfg.StoreDSN
	if storeDSN == "" && f.cfg.StoreDriver == cluster.DriverSQLite {
		storeDSN = filepath.Join(f.workingDir, "sessions.db")
	}

	hc := healthCheck{
		client:   &http.Client{Timeout: time.Second},
		user:     f.cfg.AdminUser,
		password: f.cfg.AdminPassword,
	}

	addrs := make([]string, 0, f.cfg.Nodes)
	for i := range f.cfg.Nodes {
		name := nodeName(i)

		proc, err := f.start(ctx, command, name, f.args(name, storeDSN))
		if err != nil {
			return nil, err
		}
		f.processes = append(f.processes, proc)

		base := fmt.Sprintf("http://127.0.0.1:%d", proc.port)
		if err := hc.waitHealthy(ctx, base, name, f.cfg.StartTimeout); err != nil {
			return nil, fmt.Errorf("%w\n\nPossible issues:\n"+
				"- server command not executable\n"+
				"- process not listening on port %d\n"+
				"- process crashing during startup (see %s)",
				err, proc.port, proc.logFile.Name())
		}

		level.Info(f.logger).Log("msg", "node started", "node", name, "addr", base, "pid", proc.cmd.Process.Pid)
		addrs = append(addrs, base)
	}

	return addrs, nil
}

// args are the serve flags for one node; the port flag is added by start.
func (f *Forked) args(name, storeDSN string) []string {
	args := []string{
		"serve",
		"--node=" + name,
		"--store=" + f.cfg.StoreDriver,
	}

	if storeDSN != "" {
		args = append(args, "--store-dsn="+storeDSN)
	}

	if f.cfg.HandlerPath != "" {
		args = append(args, "--handler-path="+f.cfg.HandlerPath)
	}

	return args
}

// start launches one node on an OS-assigned port
func (f *Forked) start(ctx context.Context, command, name string, args []string) (*process, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to get OS-assigned port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	args = append(args, fmt.Sprintf("--port=%d", port))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(),
		EnvAdminUser+"="+f.cfg.AdminUser,
		EnvAdminPassword+"="+f.cfg.AdminPassword,
	)

	// Redirect stdout/stderr to log file
	logPath := filepath.Join(f.workingDir, fmt.Sprintf("%s.log", name))
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	proc := &process{name: name, cmd: cmd, logFile: logFile, port: port, done: make(chan struct{})}
	go func() {
		proc.cmd.Wait()
		close(proc.done)
	}()

	return proc, nil
}

// Teardown sends SIGTERM to every node, then SIGKILL after the shutdown timeout
func (f *Forked) Teardown() error {
	var errs []error
	for _, proc := range f.processes {
		if err := f.stop(proc); err != nil {
			errs = append(errs, err)
		}
	}
	f.processes = nil

	return errors.Join(errs...)
}

func (f *Forked) stop(proc *process) error {
	defer proc.logFile.Close()

	pgid := proc.cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("error stopping %s: %w", proc.name, err)
	}

	// Wait for graceful exit, force kill if timeout
	select {
	case <-proc.done:
		return nil
	case <-time.After(f.cfg.ShutdownTimeout):
	}

	level.Warn(f.logger).Log("msg", "node did not stop, killing", "node", proc.name)
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("error killing %s: %w", proc.name, err)
	}
	<-proc.done

	return nil
}
