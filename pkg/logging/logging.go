// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File receives the log. Empty means stderr.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	// Console forces human readable output on stderr.
	Console bool `mapstructure:"console" yaml:"console"`
}

// Init replaces log.Logger. The returned closer flushes and closes the log
// file, if any.
func Init(s Settings) (io.Closer, error) {
	level := zerolog.InfoLevel
	if strings.TrimSpace(s.Level) != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s.Level))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", s.Level)
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	var closer io.Closer = nopCloser{}
	switch {
	case s.File != "":
		lj := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    orDefault(s.MaxSizeMB, 10),
			MaxBackups: orDefault(s.MaxBackups, 3),
		}
		w, closer = lj, lj
	case s.Console:
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		w = os.Stderr
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return closer, nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
