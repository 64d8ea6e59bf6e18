package cmds

import (
	"io"

	"github.com/go-go-golems/novachat/pkg/config"
	"github.com/go-go-golems/novachat/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags to configuration keys. Flags a command
// does not define are skipped.
var flagKeys = map[string]string{
	"log-level": "logging.level",
	"log-file":  "logging.file",
	"endpoint":  "llm.endpoint",
	"model":     "llm.model",
	"mirror":    "mirror.enabled",
	"addr":      "mirror.addr",
	"speech":    "tts.enabled_by_default",
	"voice":     "stt.enabled",
	"markdown":  "ui.markdown",
}

// AddPersistentFlags registers the flags every command understands.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Config file (default ./config.yaml or ~/.novachat/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "Log file; empty logs to stderr")
}

// AddLLMFlags registers the inference endpoint overrides.
func AddLLMFlags(cmd *cobra.Command) {
	cmd.Flags().String("endpoint", "", "Chat completions endpoint")
	cmd.Flags().String("model", "", "Model name sent to the endpoint")
}

// NewViper builds the viper instance for cmd with its flags bound.
func NewViper(cmd *cobra.Command) (*viper.Viper, error) {
	config.LoadDotEnv()
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	v := config.NewViper(path)
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, errors.Wrapf(err, "could not bind --%s", name)
		}
	}
	return v, nil
}

// LoadConfig reads the configuration for cmd and initializes logging. The
// chat interface owns the terminal, so it logs to the configured file;
// other commands log to stderr unless --log-file is given.
func LoadConfig(cmd *cobra.Command, ownsTerminal bool) (*config.Config, io.Closer, error) {
	v, err := NewViper(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	if !ownsTerminal && !cmd.Flags().Changed("log-file") {
		cfg.Logging.File = ""
		cfg.Logging.Console = true
	}
	closer, err := logging.Init(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
