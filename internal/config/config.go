package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type MQTT struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type NATS struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type Push struct {
	// URL defaults to the API URL; the backend serves both.
	URL       string `mapstructure:"url"`
	Transport string `mapstructure:"transport"`
	Event     string `mapstructure:"event"`
}

type Config struct {
	APIURL    string `mapstructure:"api_url"`
	CompanyID string `mapstructure:"company_id"`
	Locale    string `mapstructure:"locale"`

	Push Push `mapstructure:"push"`
	MQTT MQTT `mapstructure:"mqtt"`
	NATS NATS `mapstructure:"nats"`

	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
	PendingTTL       time.Duration `mapstructure:"pending_ttl"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	GroupCacheTTL    time.Duration `mapstructure:"group_cache_ttl"`
	GroupConcurrency int           `mapstructure:"group_concurrency"`

	// JournalPath is the action journal file. "off" in config or env
	// disables journaling and leaves it empty.
	JournalPath string `mapstructure:"journal_path"`
	ServeAddr   string `mapstructure:"serve_addr"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

var defaults = map[string]any{
	"api_url":    "http://localhost:4000",
	"company_id": "",
	"locale":     "es",

	"push.url":       "",
	"push.transport": "socketio",
	"push.event":     "estado-actuadores",

	"mqtt.broker":   "",
	"mqtt.topic":    "lora/estado-actuadores",
	"mqtt.user":     "",
	"mqtt.password": "",

	"nats.url":     "",
	"nats.subject": "lora.estado-actuadores",

	"command_timeout":   "15s",
	"pending_ttl":       "2m",
	"poll_interval":     "5s",
	"reconnect_delay":   "1s",
	"group_cache_ttl":   "30s",
	"group_concurrency": 0,

	"journal_path": "~/.config/lora-control/journal.db",
	"serve_addr":   "127.0.0.1:8080",
}

// Defaults returns a copy of the built-in values.
func Defaults() map[string]any {
	values := make(map[string]any, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return values
}

func init() {
	_ = godotenv.Load()
}

// Dir is where the config file is looked up.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lora-control")
}

// Load layers defaults, the config file, then LORA_* environment variables.
// The backend URL also honours API_WS_URL, the variable the web dashboard uses.
func Load(configFile string) (Config, error) {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("LORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_url", "LORA_API_URL", "API_WS_URL", "NEXT_PUBLIC_API_WS_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.Push.URL = firstNonEmpty(cfg.Push.URL, cfg.APIURL)
	switch strings.ToLower(strings.TrimSpace(cfg.JournalPath)) {
	case "off", "none", "false":
		cfg.JournalPath = ""
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
