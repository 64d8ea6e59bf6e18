// Package config loads novachat settings from a YAML file, a .env file and
// NOVACHAT_* environment variables, in increasing order of precedence.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/novachat/pkg/logging"
	"github.com/go-go-golems/novachat/pkg/redisstream"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName   = "novachat"
	EnvPrefix = "NOVACHAT"

	DefaultSystemPrompt       = "You are Nova, a helpful AI assistant operating within the NovaChat Terminal. Be concise and slightly futuristic in your responses."
	DefaultMirrorSystemPrompt = "You are a helpful AI assistant responding via HTTP."
)

type Config struct {
	LLM     LLMConfig        `mapstructure:"llm"`
	TTS     TTSConfig        `mapstructure:"tts"`
	STT     STTConfig        `mapstructure:"stt"`
	UI      UIConfig         `mapstructure:"ui"`
	Mirror  MirrorConfig     `mapstructure:"mirror"`
	Events  EventsConfig     `mapstructure:"events"`
	Logging logging.Settings `mapstructure:"logging"`
}

type LLMConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

type TTSConfig struct {
	EnabledByDefault bool   `mapstructure:"enabled_by_default"`
	VoicePreference  string `mapstructure:"voice_preference"`
	Rate             int    `mapstructure:"rate"`
	// Engine is a binary name; empty probes espeak-ng, espeak and say.
	Engine string `mapstructure:"engine"`
}

type STTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	// Recorder is a binary name; empty probes arecord and rec.
	Recorder        string        `mapstructure:"recorder"`
	Device          string        `mapstructure:"device"`
	SampleRate      int           `mapstructure:"sample_rate"`
	Calibration     time.Duration `mapstructure:"calibration"`
	Timeout         time.Duration `mapstructure:"timeout"`
	PhraseLimit     time.Duration `mapstructure:"phrase_limit"`
	TrailingSilence time.Duration `mapstructure:"trailing_silence"`
}

type UIConfig struct {
	AssistantName string   `mapstructure:"assistant_name"`
	UserName      string   `mapstructure:"user_name"`
	ExitCommands  []string `mapstructure:"exit_commands"`
	Placeholder   string   `mapstructure:"placeholder"`
	Greeting      string   `mapstructure:"greeting"`
	ConfirmExit   bool     `mapstructure:"confirm_exit"`
	Markdown      bool     `mapstructure:"markdown"`
	AltScreen     bool     `mapstructure:"alt_screen"`
}

type MirrorConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type EventsConfig struct {
	Topic string               `mapstructure:"topic"`
	Redis redisstream.Settings `mapstructure:"redis"`
}

// defaults are kept as plain values (durations as strings) so the same
// table seeds viper and the generated config file.
func defaults() map[string]interface{} {
	redis := redisstream.DefaultSettings()
	return map[string]interface{}{
		"llm.endpoint":      "http://127.0.0.1:1234/v1/chat/completions",
		"llm.model":         "lmstudio-community/Meta-Llama-3-8B-Instruct-GGUF",
		"llm.api_key":       "lm-studio",
		"llm.temperature":   0.7,
		"llm.max_tokens":    2048,
		"llm.timeout":       "150s",
		"llm.system_prompt": DefaultSystemPrompt,

		"tts.enabled_by_default": true,
		"tts.voice_preference":   "male",
		"tts.rate":               160,
		"tts.engine":             "",

		"stt.enabled":          true,
		"stt.endpoint":         "",
		"stt.api_key":          "",
		"stt.model":            "whisper-1",
		"stt.language":         "",
		"stt.recorder":         "",
		"stt.device":           "",
		"stt.sample_rate":      16000,
		"stt.calibration":      "500ms",
		"stt.timeout":          "5s",
		"stt.phrase_limit":     "10s",
		"stt.trailing_silence": "1s",

		"ui.assistant_name": "Nova",
		"ui.user_name":      "Operator",
		"ui.exit_commands":  []string{"exit_nova", "exit"},
		"ui.placeholder":    "Enter the input text here (or type 'exit_nova' to close)",
		"ui.greeting":       "Greetings Operator. NovaChat Terminal online. How may I assist you?",
		"ui.confirm_exit":   true,
		"ui.markdown":       true,
		"ui.alt_screen":     true,

		"mirror.enabled":       false,
		"mirror.addr":          "0.0.0.0:5000",
		"mirror.system_prompt": DefaultMirrorSystemPrompt,

		"events.topic":          "novachat.turns",
		"events.redis.enabled":  redis.Enabled,
		"events.redis.addr":     redis.Addr,
		"events.redis.group":    redis.Group,
		"events.redis.consumer": redis.Consumer,

		"logging.level":       "info",
		"logging.file":        "novachat.log",
		"logging.max_size_mb": 10,
		"logging.max_backups": 3,
		"logging.console":     false,
	}
}

// NewViper prepares a viper instance with defaults, the config file search
// path and environment overrides. configPath, when set, names the file
// explicitly. Flags can be bound to the result before calling Load.
func NewViper(configPath string) *viper.Viper {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads .env from the working directory if there is one.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("could not load .env file")
		}
		return
	}
	log.Debug().Msg("loaded .env file")
}

// Load reads the config file (a missing file is fine) and decodes v.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		log.Debug().Msg("no config file found, using defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("loaded config file")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(errors.Wrap(err, "built-in defaults do not decode"))
	}
	return &c
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.LLM.Endpoint) == "" {
		problems = append(problems, "llm.endpoint is empty")
	}
	if strings.TrimSpace(c.LLM.SystemPrompt) == "" {
		problems = append(problems, "llm.system_prompt is empty")
	}
	if strings.TrimSpace(c.Mirror.SystemPrompt) == "" {
		problems = append(problems, "mirror.system_prompt is empty")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.Timeout <= 0 {
		problems = append(problems, "llm.timeout must be positive")
	}
	if c.STT.SampleRate <= 0 {
		problems = append(problems, "stt.sample_rate must be positive")
	}
	if c.Events.Topic == "" {
		problems = append(problems, "events.topic is empty")
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WriteDefault writes the built-in configuration as YAML. It refuses to
// replace an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("%s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "could not create config directory")
		}
	}
	b, err := yaml.Marshal(nest(defaults()))
	if err != nil {
		return errors.Wrap(err, "could not encode defaults")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrapf(err, "could not write %s", path)
	}
	log.Info().Str("file", path).Msg("wrote default config")
	return nil
}

// DefaultPath is where `config init` writes when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, "."+AppName, "config.yaml")
}

// nest turns dotted keys into nested maps.
func nest(flat map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range flat {
		parts := strings.Split(k, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = v
	}
	return out
}
