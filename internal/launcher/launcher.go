// Package launcher runs the demo child application in its own session so
// the whole process group can be stopped together.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
)

// ErrNoCommand is returned for an empty command line.
var ErrNoCommand = errors.New("no child command configured")

// DefaultGrace is how long Stop waits after SIGTERM before SIGKILL.
const DefaultGrace = 3 * time.Second

// Child is a running child process.
type Child struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Start launches argv with stdout and stderr inherited.
func Start(argv []string, env ...string) (*Child, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrNoCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = &unix.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	c := &Child{cmd: cmd, done: make(chan struct{})}
	go func() {
		c.err = cmd.Wait()
		close(c.done)
	}()

	logger.WithComponent("launcher").Info().Strs("argv", argv).Int("pid", cmd.Process.Pid).Msg("Child started")
	return c, nil
}

// Pid returns the child's process id, which is also its group id.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Done is closed when the child exits.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Err returns the exit error once Done is closed.
func (c *Child) Err() error {
	<-c.done
	return c.err
}

// Stop sends SIGTERM to the process group and SIGKILL after grace.
func (c *Child) Stop(grace time.Duration) error {
	log := logger.WithComponent("launcher")

	select {
	case <-c.done:
		return nil
	default:
	}

	if err := unix.Kill(-c.Pid(), unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to signal child group: %w", err)
	}

	select {
	case <-c.done:
		log.Info().Int("pid", c.Pid()).Msg("Child stopped")
		return nil
	case <-time.After(grace):
	}

	log.Warn().Int("pid", c.Pid()).Msg("Child ignored SIGTERM, killing")
	if err := unix.Kill(-c.Pid(), unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to kill child group: %w", err)
	}
	<-c.done
	return nil
}
