package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultConfigFile = "config.yaml"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Line       LineConfig       `koanf:"line"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Messages   MessagesConfig   `koanf:"messages"`
	Audit      AuditConfig      `koanf:"audit"`
	Queue      QueueConfig      `koanf:"queue"`
	Redis      RedisConfig      `koanf:"redis"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Port            string        `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address for Port, accepting both "8000" and ":8000".
func (s ServerConfig) Addr() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

type LineConfig struct {
	ChannelAccessToken string `koanf:"channel_access_token"`
	ChannelSecret      string `koanf:"channel_secret"`
	BaseURL            string `koanf:"base_url"`
}

type ClassifierConfig struct {
	Endpoint           string        `koanf:"endpoint"`
	APIToken           string        `koanf:"api_token"`
	Labels             []string      `koanf:"labels"`
	HypothesisTemplate string        `koanf:"hypothesis_template"`
	Timeout            time.Duration `koanf:"timeout"`
}

type DispatcherConfig struct {
	MaxInFlight     int           `koanf:"max_in_flight"`
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`
	DedupTTL        time.Duration `koanf:"dedup_ttl"`
}

type MessagesConfig struct {
	Processing     string `koanf:"processing"`
	Prompt         string `koanf:"prompt"`
	Result         string `koanf:"result"`
	Undeterminable string `koanf:"undeterminable"`
}

type AuditConfig struct {
	Path        string `koanf:"path"`
	DatabaseURL string `koanf:"database_url"`
}

type QueueConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// envKeys maps the process environment onto configuration keys.
var envKeys = map[string]string{
	"PORT":                      "server.port",
	"LINE_CHANNEL_ACCESS_TOKEN": "line.channel_access_token",
	"LINE_CHANNEL_SECRET":       "line.channel_secret",
	"LINE_API_BASE_URL":         "line.base_url",
	"HF_ENDPOINT":               "classifier.endpoint",
	"HF_API_TOKEN":              "classifier.api_token",
	"CLASSIFIER_TIMEOUT":        "classifier.timeout",
	"MAX_IN_FLIGHT":             "dispatcher.max_in_flight",
	"AUDIT_LOG_PATH":            "audit.path",
	"DATABASE_URL":              "audit.database_url",
	"KAFKA_TOPIC":               "queue.topic",
	"REDIS_ADDR":                "redis.addr",
	"LOG_LEVEL":                 "log.level",
	"LOG_FORMAT":                "log.format",
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Line: LineConfig{
			BaseURL: "https://api.line.me",
		},
		Classifier: ClassifierConfig{
			Endpoint: "https://api-inference.huggingface.co/models/MoritzLaurer/mDeBERTa-v3-base-mnli-xnli",
			Labels:   []string{"positive", "negative"},
			Timeout:  5 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			MaxInFlight:     64,
			DeliveryTimeout: 10 * time.Second,
			DedupTTL:        24 * time.Hour,
		},
		Messages: MessagesConfig{
			Processing:     "Analyzing your message, one moment...",
			Prompt:         "Please send a sentence and I will analyze its sentiment.",
			Result:         `This message reads as "{{.Label}}" (confidence: {{.Percent}}%).`,
			Undeterminable: "Sorry, I could not determine the sentiment of that message.",
		},
		Audit: AuditConfig{
			Path: "emotion_log.csv",
		},
		Queue: QueueConfig{
			Topic: "moodline.audit",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and the
// process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Slices decode over the defaults element by element, so replace them wholesale.
	if k.Exists("classifier.labels") {
		cfg.Classifier.Labels = k.Strings("classifier.labels")
	}
	if k.Exists("queue.brokers") {
		cfg.Queue.Brokers = k.Strings("queue.brokers")
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Queue.Brokers = splitList(brokers)
	}
	if labels := os.Getenv("CLASSIFIER_LABELS"); labels != "" {
		cfg.Classifier.Labels = splitList(labels)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Line.ChannelAccessToken == "" {
		errs = append(errs, errors.New("line channel access token is required"))
	}
	if c.Line.ChannelSecret == "" {
		errs = append(errs, errors.New("line channel secret is required"))
	}
	if c.Classifier.Endpoint == "" {
		errs = append(errs, errors.New("classifier endpoint is required"))
	}
	if len(c.Classifier.Labels) == 0 {
		errs = append(errs, errors.New("at least one candidate label is required"))
	}
	if c.Classifier.Timeout <= 0 {
		errs = append(errs, errors.New("classifier timeout must be positive"))
	}
	if c.Dispatcher.MaxInFlight <= 0 {
		errs = append(errs, errors.New("dispatcher max_in_flight must be positive"))
	}
	if c.Audit.Path == "" {
		errs = append(errs, errors.New("audit log path is required"))
	}
	return errors.Join(errs...)
}

func envKey(name string) string {
	return envKeys[name]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
