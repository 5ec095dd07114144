package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "WATCHLOG_"
	ConfigPathEnv = "WATCHLOG_CONFIG"
	defaultConfig = "watchlog.yaml"
)

type Config struct {
	DB     DBConfig     `koanf:"db"`
	Cache  CacheConfig  `koanf:"cache"`
	HTTP   AddrConfig   `koanf:"http"`
	Sync   AddrConfig   `koanf:"sync"`
	GRPC   AddrConfig   `koanf:"grpc"`
	Auth   AuthConfig   `koanf:"auth"`
	Log    LogConfig    `koanf:"log"`
	Client ClientConfig `koanf:"client"`
}

type DBConfig struct {
	Path string `koanf:"path"`
}

type CacheConfig struct {
	Dir string `koanf:"dir"`
}

type AddrConfig struct {
	Addr string `koanf:"addr"`
}

type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	JWTIssuer   string        `koanf:"jwt_issuer"`
	JWTDuration time.Duration `koanf:"jwt_ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type ClientConfig struct {
	APIURL    string        `koanf:"api_url"`
	TokenPath string        `koanf:"token_path"`
	Timeout   time.Duration `koanf:"timeout"`
}

// DataDir is ~/.watchlog, or ./.watchlog when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".watchlog")
}

func Defaults() Config {
	dir := DataDir()
	return Config{
		DB:    DBConfig{Path: filepath.Join(dir, "data.db")},
		Cache: CacheConfig{Dir: filepath.Join(dir, "cache")},
		HTTP:  AddrConfig{Addr: ":8080"},
		Sync:  AddrConfig{Addr: ":7070"},
		GRPC:  AddrConfig{Addr: ":9091"},
		Auth: AuthConfig{
			// dev default (change for production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "watchlog",
			JWTDuration: 24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Client: ClientConfig{
			APIURL:    "http://localhost:8080",
			TokenPath: filepath.Join(dir, "token.json"),
			Timeout:   15 * time.Second,
		},
	}
}

// Load layers defaults, an optional YAML file and WATCHLOG_* variables, in
// that order of precedence. An empty path falls back to $WATCHLOG_CONFIG and
// then ./watchlog.yaml; a missing default file is not an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfig
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKey maps WATCHLOG_AUTH_JWT_SECRET to auth.jwt_secret: the first
// segment is the section, the rest is the field name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if s == "config" {
		return ""
	}
	return strings.Replace(s, "_", ".", 1)
}
