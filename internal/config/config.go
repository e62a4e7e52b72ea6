// Package config carga la configuración desde YAML con overrides por
// variables de entorno. Un solo struct Config para todo el repo.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Backend struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`

	Push struct {
		URL          string `yaml:"url"`
		ReconnectMax string `yaml:"reconnect_max"`
	} `yaml:"push"`

	Telegram struct {
		// InitData crudo para el bridge headless. En el WebView real
		// lo entrega el host; acá viene de config o de TG_INIT_DATA.
		InitData string `yaml:"init_data"`
		BotToken string `yaml:"bot_token"`
		// AdminID es el telegram id configurado como admin.
		AdminID string `yaml:"admin_id"`
	} `yaml:"telegram"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | file | redis
		Path   string `yaml:"path"`   // file
		Redis  struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	DevServer struct {
		Addr string `yaml:"addr"`
		// AdminPasswordHash es el PHC argon2id de la password del
		// admin de desarrollo.
		AdminPasswordHash string `yaml:"admin_password_hash"`
		BotToken          string `yaml:"bot_token"`
		Storage           struct {
			Driver string `yaml:"driver"` // memory | postgres
			DSN    string `yaml:"dsn"`
		} `yaml:"storage"`
	} `yaml:"devserver"`
}

// Load lee el YAML en path (opcional: "" usa solo defaults + env),
// aplica defaults y pisa con variables de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8090"
	}
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "10s"
	}
	if c.Push.URL == "" {
		c.Push.URL = c.Backend.BaseURL + "/v1/ws"
	}
	if c.Push.ReconnectMax == "" {
		c.Push.ReconnectMax = "30s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		home, _ := os.UserHomeDir()
		c.Storage.Path = home + "/.salvacomida/state.json"
	}
	if c.DevServer.Addr == "" {
		c.DevServer.Addr = ":8090"
	}
	if c.DevServer.Storage.Driver == "" {
		c.DevServer.Storage.Driver = "memory"
	}

	c.applyEnvOverrides()
	return &c, nil
}

// BackendTimeout parsea Backend.Timeout (fallback 10s).
func (c *Config) BackendTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Backend.Timeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// PushReconnectMax parsea Push.ReconnectMax (fallback 30s).
func (c *Config) PushReconnectMax() time.Duration {
	if d, err := time.ParseDuration(c.Push.ReconnectMax); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// BACKEND / PUSH
	if v, ok := getEnvStr("BACKEND_BASE_URL"); ok {
		c.Backend.BaseURL = v
	}
	if v, ok := getEnvStr("BACKEND_TIMEOUT"); ok {
		c.Backend.Timeout = v
	}
	if v, ok := getEnvStr("PUSH_URL"); ok {
		c.Push.URL = v
	}

	// TELEGRAM
	if v, ok := getEnvStr("TG_INIT_DATA"); ok {
		c.Telegram.InitData = v
	}
	if v, ok := getEnvStr("TG_BOT_TOKEN"); ok {
		c.Telegram.BotToken = v
	}
	if v, ok := getEnvStr("ADMIN_TELEGRAM_ID"); ok {
		c.Telegram.AdminID = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_PATH"); ok {
		c.Storage.Path = v
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Storage.Redis.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Storage.Redis.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}

	// DEVSERVER
	if v, ok := getEnvStr("DEVSERVER_ADDR"); ok {
		c.DevServer.Addr = v
	}
	if v, ok := getEnvStr("DEVSERVER_ADMIN_PASSWORD_HASH"); ok {
		c.DevServer.AdminPasswordHash = v
	}
	if v, ok := getEnvStr("DEVSERVER_BOT_TOKEN"); ok {
		c.DevServer.BotToken = v
	}
	if v, ok := getEnvStr("DEVSERVER_STORAGE_DRIVER"); ok {
		c.DevServer.Storage.Driver = v
	}
	if v, ok := getEnvStr("DEVSERVER_DSN"); ok {
		c.DevServer.Storage.DSN = v
	}
}
