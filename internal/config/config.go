package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration.
type Config struct {
	Deepgram    DeepgramConfig
	Audio       AudioConfig
	Session     SessionConfig
	Translation TranslationConfig
	OpenAI      OpenAIConfig
	History     HistoryConfig

	// Sources lists the config and .env files that contributed values.
	Sources []string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	MonitorDevice   string
	SampleRate      int
	Channels        int
}

type SessionConfig struct {
	ChunkSize      int
	StreamingGrace time.Duration
}

type TranslationConfig struct {
	// Languages are the languages expected in the meeting audio.
	Languages    []string
	Target       string
	GlossaryFile string
	// DisableWeb drops the keyless web fallbacks from the provider chain.
	DisableWeb bool
}

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SummaryModel string
}

type HistoryConfig struct {
	Dir string
}

// fileConfig is the on-disk config file. JSON files parse as YAML.
type fileConfig struct {
	SampleRate          int      `yaml:"sample_rate"`
	RecognizedLanguages []string `yaml:"recognized_languages"`
	TranslationTarget   string   `yaml:"translation_target"`
	GlossaryFile        string   `yaml:"glossary_file"`
	OpenAIAPIKey        string   `yaml:"openai_api_key"`
	OpenAIBaseURL       string   `yaml:"openai_base_url"`
	OpenAIModel         string   `yaml:"openai_model"`
	SummaryModel        string   `yaml:"summary_model"`
	HistoryDir          string   `yaml:"history_dir"`
	DeepgramAPIKey      string   `yaml:"deepgram_api_key"`
	AudioMonitorDevice  string   `yaml:"audio_monitor_device"`
}

// env keys the file values stand in for.
func (f fileConfig) values() map[string]string {
	values := map[string]string{
		"CONFAGENT_TARGET_LANGUAGE": f.TranslationTarget,
		"CONFAGENT_GLOSSARY_FILE":   f.GlossaryFile,
		"OPENAI_API_KEY":            f.OpenAIAPIKey,
		"OPENAI_BASE_URL":           f.OpenAIBaseURL,
		"CONFAGENT_OPENAI_MODEL":    f.OpenAIModel,
		"CONFAGENT_SUMMARY_MODEL":   f.SummaryModel,
		"CONFAGENT_HISTORY_DIR":     f.HistoryDir,
		"DEEPGRAM_API_KEY":          f.DeepgramAPIKey,
		"CONFAGENT_LANGUAGES":       strings.Join(f.RecognizedLanguages, ","),
	}
	if f.SampleRate != 0 {
		values["CONFAGENT_SAMPLE_RATE"] = strconv.Itoa(f.SampleRate)
	}
	if f.AudioMonitorDevice != "" {
		values["CONFAGENT_AUDIO_MONITOR_DEVICE"] = f.AudioMonitorDevice
	}
	return values
}

type options struct {
	workDir    string
	historyDir string
	logger     *log.Logger
}

// Option customizes Load.
type Option func(*options)

// WithWorkDir sets the directory searched for config.json, config.yaml and .env.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHistoryDir overrides every other source for the history location.
func WithHistoryDir(dir string) Option {
	return func(o *options) { o.historyDir = dir }
}

// Load resolves configuration. Later sources win: built-in defaults, the
// config file, .env files, then the process environment. Unreadable files
// are logged and skipped.
func Load(opts ...Option) (Config, error) {
	o := options{workDir: ".", logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	r := &resolver{}
	var sources []string

	if path, values, err := readConfigFile(o.workDir); err != nil {
		o.logger.Printf("[CONFIG]: ignoring %s: %v", path, err)
	} else if path != "" {
		r.layers = append(r.layers, values)
		sources = append(sources, path)
	}

	// godotenv.Read lets later files win, so the working directory goes last.
	envFiles := existingFiles(
		filepath.Join(home, ".config", "confagent", ".env"),
		filepath.Join(o.workDir, ".env"),
	)
	if len(envFiles) > 0 {
		dotenv, err := godotenv.Read(envFiles...)
		if err != nil {
			o.logger.Printf("[CONFIG]: ignoring .env files: %v", err)
		} else {
			r.layers = append(r.layers, dotenv)
			sources = append(sources, envFiles...)
		}
	}

	languages := r.list("CONFAGENT_LANGUAGES", []string{"en", "fr"})
	defaultModel := "nova-2"
	if len(languages) > 1 {
		defaultModel = "nova-3"
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      r.str("DEEPGRAM_API_KEY", ""),
			APIBaseURL:  r.str("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       r.str("DEEPGRAM_MODEL", defaultModel),
			SmartFormat: r.boolean("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: r.str("CONFAGENT_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     r.str("CONFAGENT_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     r.str("CONFAGENT_AUDIO_INPUT_DEVICE", "default"),
			MonitorDevice:   r.str("CONFAGENT_AUDIO_MONITOR_DEVICE", ""),
			SampleRate:      r.integer("CONFAGENT_SAMPLE_RATE", 16000),
			Channels:        r.integer("CONFAGENT_CHANNELS", 1),
		},
		Session: SessionConfig{
			ChunkSize:      r.integer("CONFAGENT_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: time.Duration(r.integer("CONFAGENT_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
		},
		Translation: TranslationConfig{
			Languages:    languages,
			Target:       r.str("CONFAGENT_TARGET_LANGUAGE", "zh-CN"),
			GlossaryFile: expandHome(r.str("CONFAGENT_GLOSSARY_FILE", ""), home),
			DisableWeb:   r.boolean("CONFAGENT_DISABLE_WEB_TRANSLATE", false),
		},
		OpenAI: OpenAIConfig{
			APIKey:  r.str("OPENAI_API_KEY", ""),
			BaseURL: r.str("OPENAI_BASE_URL", ""),
			Model:   r.str("CONFAGENT_OPENAI_MODEL", "gpt-3.5-turbo"),
		},
		History: HistoryConfig{
			Dir: expandHome(r.str("CONFAGENT_HISTORY_DIR", filepath.Join(home, ".local", "share", "confagent", "recordings_history")), home),
		},
		Sources: sources,
	}
	cfg.OpenAI.SummaryModel = r.str("CONFAGENT_SUMMARY_MODEL", cfg.OpenAI.Model)
	if strings.TrimSpace(o.historyDir) != "" {
		cfg.History.Dir = expandHome(strings.TrimSpace(o.historyDir), home)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = time.Second
	}

	return cfg, nil
}

// readConfigFile returns the values of the first config file found. An
// empty path means there is none.
func readConfigFile(workDir string) (string, map[string]string, error) {
	candidates := []string{
		filepath.Join(workDir, "config.json"),
		filepath.Join(workDir, "config.yaml"),
	}
	if explicit := strings.TrimSpace(os.Getenv("CONFAGENT_CONFIG")); explicit != "" {
		candidates = []string{explicit}
	}

	files := existingFiles(candidates...)
	if len(files) == 0 {
		return "", nil, nil
	}
	path := files[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return path, nil, fmt.Errorf("parse config: %w", err)
	}
	return path, file.values(), nil
}

func existingFiles(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}

func expandHome(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// resolver looks keys up in the environment first, then in file layers
// from last added to first.
type resolver struct {
	layers []map[string]string
}

func (r *resolver) lookup(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	for i := len(r.layers) - 1; i >= 0; i-- {
		if value := strings.TrimSpace(r.layers[i][key]); value != "" {
			return value
		}
	}
	return ""
}

func (r *resolver) str(key string, fallback string) string {
	if value := r.lookup(key); value != "" {
		return value
	}
	return fallback
}

func (r *resolver) integer(key string, fallback int) int {
	value := r.lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (r *resolver) boolean(key string, fallback bool) bool {
	switch strings.ToLower(r.lookup(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func (r *resolver) list(key string, fallback []string) []string {
	value := r.lookup(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
