package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/vcb/compliance"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/statuslist"
	"xdao.co/vcb/storage/casconfig"
)

// configEnv names the config file when --config is not given.
const configEnv = "VCB_CONFIG"

// Config is the vcb.yaml file.
//
// Example:
//
//	log:
//	  level: debug
//	  format: json
//	keys:
//	  dir: ${HOME}/.xdao/vcb/keys
//	storage:
//	  backends:
//	    - name: localfs
//	      dir: ${HOME}/.xdao/vcb/cas
//	encode:
//	  max_payload_bytes: 800
//	  compression: auto
//	verify:
//	  compliance: strict
//	  trust_list: /etc/vcb/trust.txt
type Config struct {
	Log     LogConfig        `yaml:"log"`
	Keys    KeysConfig       `yaml:"keys"`
	Storage casconfig.Config `yaml:"storage"`
	Encode  EncodeConfig     `yaml:"encode"`
	Verify  VerifyConfig     `yaml:"verify"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

type KeysConfig struct {
	Dir string `yaml:"dir"`
}

type EncodeConfig struct {
	// MaxPayloadBytes of zero or less disables the capacity check.
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
	// Compression is auto (smallest form) or a compression algorithm name.
	Compression string `yaml:"compression"`
	// Digest overrides the signing algorithm's default digest when set.
	Digest string `yaml:"digest,omitempty"`
}

type VerifyConfig struct {
	Compliance       string `yaml:"compliance"`
	TrustList        string `yaml:"trust_list,omitempty"`
	StatusListLength int    `yaml:"status_list_length"`
	// Trustd is the address of a vcb-trustd server. When set, keys and
	// status lists are fetched from it instead of the local trust list and
	// storage.
	Trustd    string        `yaml:"trustd,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   uint64        `yaml:"retries"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	// MaxExpandedBytes bounds decompressed claims; zero keeps the default.
	MaxExpandedBytes int `yaml:"max_expanded_bytes,omitempty"`
}

// Default returns the configuration used when no file is given. A file is
// merged over it.
func Default() *Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, ".xdao", "vcb")
	return &Config{
		Log:  LogConfig{Level: "info", Format: "text"},
		Keys: KeysConfig{Dir: filepath.Join(root, "keys")},
		Storage: casconfig.Config{Backends: []casconfig.BackendConfig{
			{Name: "localfs", Dir: filepath.Join(root, "cas")},
		}},
		Encode: EncodeConfig{
			MaxPayloadBytes: payload.DefaultMaxPayloadBytes,
			Compression:     "auto",
		},
		Verify: VerifyConfig{
			Compliance:       compliance.Permissive.String(),
			StatusListLength: statuslist.DefaultListLength,
			Timeout:          5 * time.Second,
			Retries:          3,
			CacheSize:        256,
			CacheTTL:         5 * time.Minute,
		},
	}
}

// LoadConfig reads path, or the file named by VCB_CONFIG when path is empty.
// With neither, the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.expandVariables()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Keys.Dir = os.ExpandEnv(c.Keys.Dir)
	c.Verify.TrustList = os.ExpandEnv(c.Verify.TrustList)
	for i := range c.Storage.Backends {
		c.Storage.Backends[i].Dir = os.ExpandEnv(c.Storage.Backends[i].Dir)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Keys.Dir == "" {
		errs = append(errs, errors.New("keys.dir is required"))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if c.Encode.Compression != "auto" {
		if _, err := compression.ParseAlgorithm(c.Encode.Compression); err != nil {
			errs = append(errs, fmt.Errorf("encode.compression: %w", err))
		}
	}
	if c.Encode.Digest != "" {
		if _, err := proof.ParseDigest(c.Encode.Digest); err != nil {
			errs = append(errs, fmt.Errorf("encode.digest: %w", err))
		}
	}
	if _, err := compliance.ParseMode(c.Verify.Compliance); err != nil {
		errs = append(errs, fmt.Errorf("verify.compliance: %w", err))
	}
	if c.Verify.StatusListLength <= 0 {
		errs = append(errs, errors.New("verify.status_list_length must be positive"))
	}

	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Logger builds the slog handler the config asks for.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
