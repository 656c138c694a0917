package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Bind         string   `yaml:"bind"`
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type BusConfig struct {
	Embedded         bool     `yaml:"embedded"`
	Port             int      `yaml:"port"`
	Servers          []string `yaml:"servers"`
	ConnectTimeout   int      `yaml:"connect_timeout_ms"`
	RequestTimeoutMS int      `yaml:"request_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type MediaConfig struct {
	Dir      string `yaml:"dir"`
	MaxFiles int    `yaml:"max_files"`
}

type DialogueConfig struct {
	Mode              string  `yaml:"mode"` // mock, ollama, gemini
	Endpoint          string  `yaml:"endpoint"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

type SpeechConfig struct {
	Mode              string `yaml:"mode"` // mock, exec, googletts
	Command           string `yaml:"command"`
	LanguageCode      string `yaml:"language_code"`
	ExaminerVoice     string `yaml:"examiner_voice"`
	CandidateVoice    string `yaml:"candidate_voice"`
	CacheTTLMinutes   int    `yaml:"cache_ttl_minutes"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type PodcastConfig struct {
	MaxConcurrency int     `yaml:"max_concurrency"`
	SecondsPerChar float64 `yaml:"seconds_per_char"`
}

type Config struct {
	DaemonName  string           `yaml:"daemon_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Media       MediaConfig      `yaml:"media"`
	Dialogue    DialogueConfig   `yaml:"dialogue"`
	Speech      SpeechConfig     `yaml:"speech"`
	Podcast     PodcastConfig    `yaml:"podcast"`
}

func Default() Config {
	return Config{
		DaemonName:  "speaksimd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:         "0.0.0.0",
			Port:         8000,
			AllowOrigins: []string{"http://localhost:3000"},
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:         true,
			Port:             4222,
			Servers:          []string{"nats://localhost:4222"},
			ConnectTimeout:   2000,
			RequestTimeoutMS: 60000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/speaksim-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Media: MediaConfig{
			Dir:      "./data/audio",
			MaxFiles: 200,
		},
		Dialogue: DialogueConfig{
			Mode:              "mock",
			Endpoint:          "http://localhost:11434",
			Model:             "llama3.2:latest",
			MaxTokens:         1200,
			Temperature:       0.7,
			RequestsPerMinute: 30,
		},
		Speech: SpeechConfig{
			Mode:              "mock",
			LanguageCode:      "en-GB",
			ExaminerVoice:     "en-GB-Standard-B",
			CandidateVoice:    "en-US-Standard-C",
			CacheTTLMinutes:   30,
			RequestsPerMinute: 120,
		},
		Podcast: PodcastConfig{
			MaxConcurrency: 4,
			SecondsPerChar: 0.1,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.DaemonName, "SPEAKSIM_DAEMON_NAME")
	overrideString(&cfg.Environment, "SPEAKSIM_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SPEAKSIM_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SPEAKSIM_HTTP_PORT")
	overrideStringSlice(&cfg.HTTP.AllowOrigins, "SPEAKSIM_HTTP_ALLOW_ORIGINS")
	overrideString(&cfg.Telemetry.LogLevel, "SPEAKSIM_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SPEAKSIM_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SPEAKSIM_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SPEAKSIM_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "SPEAKSIM_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SPEAKSIM_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SPEAKSIM_BUS_SERVERS")
	overrideInt(&cfg.Bus.ConnectTimeout, "SPEAKSIM_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Bus.RequestTimeoutMS, "SPEAKSIM_BUS_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "SPEAKSIM_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "SPEAKSIM_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "SPEAKSIM_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "SPEAKSIM_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "SPEAKSIM_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Media.Dir, "SPEAKSIM_MEDIA_DIR")
	overrideInt(&cfg.Media.MaxFiles, "SPEAKSIM_MEDIA_MAX_FILES")
	overrideString(&cfg.Dialogue.Mode, "SPEAKSIM_DIALOGUE_MODE")
	overrideString(&cfg.Dialogue.Endpoint, "SPEAKSIM_DIALOGUE_ENDPOINT")
	overrideString(&cfg.Dialogue.Model, "SPEAKSIM_DIALOGUE_MODEL")
	overrideString(&cfg.Dialogue.APIKey, "SPEAKSIM_DIALOGUE_API_KEY")
	overrideString(&cfg.Dialogue.APIKey, "GEMINI_API_KEY")
	overrideInt(&cfg.Dialogue.MaxTokens, "SPEAKSIM_DIALOGUE_MAX_TOKENS")
	overrideFloat(&cfg.Dialogue.Temperature, "SPEAKSIM_DIALOGUE_TEMPERATURE")
	overrideInt(&cfg.Dialogue.RequestsPerMinute, "SPEAKSIM_DIALOGUE_REQUESTS_PER_MINUTE")
	overrideString(&cfg.Speech.Mode, "SPEAKSIM_SPEECH_MODE")
	overrideString(&cfg.Speech.Command, "SPEAKSIM_SPEECH_COMMAND")
	overrideString(&cfg.Speech.LanguageCode, "SPEAKSIM_SPEECH_LANGUAGE_CODE")
	overrideString(&cfg.Speech.ExaminerVoice, "SPEAKSIM_SPEECH_EXAMINER_VOICE")
	overrideString(&cfg.Speech.CandidateVoice, "SPEAKSIM_SPEECH_CANDIDATE_VOICE")
	overrideInt(&cfg.Speech.CacheTTLMinutes, "SPEAKSIM_SPEECH_CACHE_TTL_MINUTES")
	overrideInt(&cfg.Speech.RequestsPerMinute, "SPEAKSIM_SPEECH_REQUESTS_PER_MINUTE")
	overrideInt(&cfg.Podcast.MaxConcurrency, "SPEAKSIM_PODCAST_MAX_CONCURRENCY")
	overrideFloat(&cfg.Podcast.SecondsPerChar, "SPEAKSIM_PODCAST_SECONDS_PER_CHAR")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.DaemonName == "" {
		return errors.New("daemon_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else if len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when embedded mode is disabled")
	}
	if cfg.Bus.RequestTimeoutMS <= 0 {
		return errors.New("bus.request_timeout_ms must be positive")
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Media.Dir == "" {
		return errors.New("media.dir must not be empty")
	}
	if cfg.Media.MaxFiles <= 0 {
		return errors.New("media.max_files must be >= 1")
	}
	switch cfg.Dialogue.Mode {
	case "mock", "ollama", "gemini":
	default:
		return errors.New("dialogue.mode must be one of mock|ollama|gemini")
	}
	if cfg.Dialogue.Mode == "ollama" && cfg.Dialogue.Endpoint == "" {
		return errors.New("dialogue.endpoint must be set when mode=ollama")
	}
	if cfg.Dialogue.Mode == "gemini" && cfg.Dialogue.APIKey == "" {
		return errors.New("dialogue.api_key must be set when mode=gemini")
	}
	if cfg.Dialogue.MaxTokens < 0 {
		return errors.New("dialogue.max_tokens must be >= 0")
	}
	switch cfg.Speech.Mode {
	case "mock", "exec", "googletts":
	default:
		return errors.New("speech.mode must be one of mock|exec|googletts")
	}
	if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
		return errors.New("speech.command must be set when mode=exec")
	}
	if cfg.Speech.ExaminerVoice == "" || cfg.Speech.CandidateVoice == "" {
		return errors.New("speech.examiner_voice and speech.candidate_voice must not be empty")
	}
	if cfg.Podcast.MaxConcurrency <= 0 {
		return errors.New("podcast.max_concurrency must be >= 1")
	}
	if cfg.Podcast.SecondsPerChar <= 0 {
		return errors.New("podcast.seconds_per_char must be positive")
	}
	return nil
}
