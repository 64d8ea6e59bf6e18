package capture

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// AudioConfig describes the PCM stream a recorder must produce: signed
// 16-bit little endian samples.
type AudioConfig struct {
	SampleRate int
	Channels   int
	// Device is passed to the recorder as its input device. Empty means
	// the system default.
	Device string
}

// Session is a live microphone stream.
type Session interface {
	io.ReadCloser
	Stop() error
}

type Recorder interface {
	Start(ctx context.Context, cfg AudioConfig) (Session, error)
}

var recorders = []string{"arecord", "rec"}

// ExecRecorder streams raw PCM from arecord (ALSA) or rec (sox).
type ExecRecorder struct {
	name string
	path string
}

var _ Recorder = (*ExecRecorder)(nil)

// NewExecRecorder locates a recorder binary. An empty name probes the
// known recorders in order.
func NewExecRecorder(name string) (*ExecRecorder, error) {
	candidates := recorders
	if strings.TrimSpace(name) != "" {
		candidates = []string{name}
	}
	for _, c := range candidates {
		p, err := exec.LookPath(c)
		if err != nil {
			continue
		}
		return &ExecRecorder{name: baseName(c), path: p}, nil
	}
	return nil, errors.Wrapf(ErrDeviceUnavailable, "none of %s found in PATH", strings.Join(candidates, ", "))
}

func (r *ExecRecorder) Name() string {
	return r.name
}

func (r *ExecRecorder) args(cfg AudioConfig) []string {
	rate := strconv.Itoa(cfg.SampleRate)
	channels := strconv.Itoa(cfg.Channels)
	if r.name == "rec" {
		args := []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-c", channels, "-r", rate, "-"}
		return args
	}
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", channels, "-r", rate}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

func (r *ExecRecorder) Start(ctx context.Context, cfg AudioConfig) (Session, error) {
	cmd := exec.CommandContext(ctx, r.path, r.args(cfg)...)
	if r.name == "rec" && cfg.Device != "" {
		cmd.Env = append(cmd.Environ(), "AUDIODEV="+cfg.Device)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "recorder stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "could not start %s", r.name)
	}
	return &execSession{cmd: cmd, stdout: stdout}, nil
}

type execSession struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func (s *execSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *execSession) Stop() error {
	if s.cmd.Process == nil {
		return nil
	}
	err := s.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Close stops the process and reaps it. Safe to call more than once.
func (s *execSession) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.Stop()
		_ = s.stdout.Close()
		err = s.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// killed by Stop
			err = nil
		}
	})
	return err
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
