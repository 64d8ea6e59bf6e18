package output

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// engines are probed in this order when no engine is configured.
var engines = []string{"espeak-ng", "espeak", "say"}

// ExecDevice speaks by running a command line synthesis engine, one process
// per utterance.
type ExecDevice struct {
	engine string
	path   string
	rate   int
	voice  string

	mu      sync.Mutex
	current *exec.Cmd
	stopped bool
}

var (
	_ Device      = (*ExecDevice)(nil)
	_ VoiceLister = (*ExecDevice)(nil)
)

type ExecDeviceSettings struct {
	// Engine is a binary name or path. Empty means auto-detect.
	Engine          string
	Rate            int
	VoicePreference string
}

// NewExecDevice locates a synthesis engine and selects a voice. It returns
// ErrDeviceUnavailable when no engine is installed.
func NewExecDevice(ctx context.Context, s ExecDeviceSettings) (*ExecDevice, error) {
	candidates := engines
	if strings.TrimSpace(s.Engine) != "" {
		candidates = []string{s.Engine}
	}
	var d *ExecDevice
	for _, c := range candidates {
		p, err := exec.LookPath(c)
		if err != nil {
			continue
		}
		d = &ExecDevice{engine: baseName(c), path: p, rate: s.Rate}
		break
	}
	if d == nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "none of %s found in PATH", strings.Join(candidates, ", "))
	}

	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	voices, err := d.Voices(listCtx)
	if err != nil {
		log.Warn().Err(err).Str("engine", d.engine).Msg("could not list voices, using engine default")
	} else if v, ok := SelectVoice(voices, s.VoicePreference); ok {
		d.voice = v.ID
		log.Info().Str("engine", d.engine).Str("voice", v.Name).Msg("selected speech voice")
	} else {
		log.Info().Str("engine", d.engine).Str("preference", s.VoicePreference).Msg("no voice matches preference, using engine default")
	}
	return d, nil
}

func (d *ExecDevice) Engine() string {
	return d.engine
}

func (d *ExecDevice) args(text string) []string {
	var args []string
	switch d.engine {
	case "say":
		if d.rate > 0 {
			args = append(args, "-r", strconv.Itoa(d.rate))
		}
		if d.voice != "" {
			args = append(args, "-v", d.voice)
		}
		return append(args, text)
	default:
		if d.rate > 0 {
			args = append(args, "-s", strconv.Itoa(d.rate))
		}
		if d.voice != "" {
			args = append(args, "-v", d.voice)
		}
	}
	return append(args, "--", text)
}

func (d *ExecDevice) Say(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, d.path, d.args(text)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.mu.Lock()
	if d.current != nil {
		d.mu.Unlock()
		return ErrDeviceBusy
	}
	d.current = cmd
	d.stopped = false
	d.mu.Unlock()

	err := cmd.Start()
	if err == nil {
		err = cmd.Wait()
	}

	d.mu.Lock()
	stopped := d.stopped
	d.current = nil
	d.mu.Unlock()

	if err != nil {
		if stopped || ctx.Err() != nil {
			return nil
		}
		return errors.Wrapf(err, "%s failed: %s", d.engine, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (d *ExecDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil || d.current.Process == nil {
		return nil
	}
	d.stopped = true
	if err := d.current.Process.Kill(); err != nil {
		return errors.Wrap(err, "could not stop speech process")
	}
	return nil
}

func (d *ExecDevice) Voices(ctx context.Context) ([]Voice, error) {
	var cmd *exec.Cmd
	switch d.engine {
	case "say":
		cmd = exec.CommandContext(ctx, d.path, "-v", "?")
	default:
		cmd = exec.CommandContext(ctx, d.path, "--voices")
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "listing voices")
	}
	if d.engine == "say" {
		return parseSayVoices(out), nil
	}
	return parseEspeakVoices(out), nil
}

// parseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language Age/Gender VoiceName File Other Languages
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) < 5 {
			continue
		}
		voices = append(voices, Voice{ID: f[1], Name: strings.ReplaceAll(f[3], "_", " ")})
	}
	return voices
}

// parseSayVoices reads `say -v ?` lines of the form
//
//	Daniel              en_GB    # Hello, my name is Daniel.
func parseSayVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		left, _, _ := strings.Cut(sc.Text(), "#")
		f := strings.Fields(left)
		if len(f) < 2 {
			continue
		}
		name := strings.Join(f[:len(f)-1], " ")
		voices = append(voices, Voice{ID: name, Name: name})
	}
	return voices
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
