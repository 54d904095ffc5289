package config

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/prompts"
	"github.com/lhdbsbz/inboxagent/internal/reply"
	"gopkg.in/yaml.v3"
)

var current atomic.Pointer[Config]

var (
	onReloadMu        sync.Mutex
	onReloadCallbacks []func(*Config)
)

// Get returns the current in-memory config (hot-reloaded when the file changes).
func Get() *Config { return current.Load() }

// Set sets the current in-memory config. Used at startup, by the file watcher and by API edits.
func Set(c *Config) {
	if c != nil {
		current.Store(c)
	}
}

// RegisterOnReload registers a callback that runs after config is hot-reloaded (e.g. poller schedule).
func RegisterOnReload(fn func(*Config)) {
	onReloadMu.Lock()
	defer onReloadMu.Unlock()
	onReloadCallbacks = append(onReloadCallbacks, fn)
}

func notifyReload(cfg *Config) {
	onReloadMu.Lock()
	cb := make([]func(*Config), len(onReloadCallbacks))
	copy(cb, onReloadCallbacks)
	onReloadMu.Unlock()
	for _, fn := range cb {
		fn(cfg)
	}
}

//go:embed config.example.yaml
var exampleConfigBytes []byte

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses the config file and fills defaults. It does not
// validate; call Validate before handing rules to the engine.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ensureNonNilSlices(&cfg)
	clearUnresolved(&cfg)
	applyLoadDefaults(&cfg)
	return &cfg, nil
}

// clearUnresolved blanks Graph API settings whose ${VAR} was not set, so the
// poller treats them as unconfigured instead of calling the API with a placeholder.
func clearUnresolved(cfg *Config) {
	for _, v := range []*string{&cfg.Meta.AccessToken, &cfg.Meta.PageID, &cfg.Meta.InstagramBusinessID} {
		if envVarPattern.MatchString(*v) {
			*v = ""
		}
	}
}

func ensureNonNilSlices(cfg *Config) {
	if cfg.Rules == nil {
		cfg.Rules = []reply.AutomationRule{}
	}
}

func applyLoadDefaults(cfg *Config) {
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = 19800
	}
	if cfg.Agent.Tone == "" {
		cfg.Agent.Tone = reply.ToneFriendly
	}
	if cfg.Meta.GraphURL == "" {
		cfg.Meta.GraphURL = "https://graph.facebook.com"
	}
	if cfg.Meta.GraphVersion == "" {
		cfg.Meta.GraphVersion = "v19.0"
	}
	if cfg.Meta.RequestsPerSecond <= 0 {
		cfg.Meta.RequestsPerSecond = 5
	}
	if cfg.Meta.Timeout <= 0 {
		cfg.Meta.Timeout = 30 * time.Second
	}
	if cfg.Meta.MaxRetries < 0 {
		cfg.Meta.MaxRetries = 0
	}
	if cfg.Poller.Schedule == "" {
		cfg.Poller.Schedule = "@every 1m"
	}
	if cfg.Poller.Limit <= 0 || cfg.Poller.Limit > 50 {
		cfg.Poller.Limit = 25
	}
	if cfg.Poller.DedupTTL <= 0 {
		cfg.Poller.DedupTTL = 24 * time.Hour
	}
	if cfg.Poller.DedupSize <= 0 {
		cfg.Poller.DedupSize = 10000
	}
}

// Validate checks agent settings and every rule. Rule problems are returned
// as joined *reply.ConfigurationError values so callers can errors.As them.
func Validate(cfg *Config) error {
	var errs []error
	if !cfg.Agent.Tone.Valid() {
		errs = append(errs, fmt.Errorf("agent.tone %q must be one of friendly, professional, short, detailed", cfg.Agent.Tone))
	}
	if !prompts.Supported(cfg.Agent.Locale) {
		errs = append(errs, fmt.Errorf("agent.locale %q is not supported", cfg.Agent.Locale))
	}
	if cfg.Poller.MinConfidence < 0 || cfg.Poller.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("poller.minConfidence %v is outside [0, 1]", cfg.Poller.MinConfidence))
	}
	seen := make(map[string]int, len(cfg.Rules))
	for i, r := range cfg.Rules {
		if r.ID == "" {
			errs = append(errs, &reply.ConfigurationError{Index: i, Field: "id", Reason: "must not be empty"})
			continue
		}
		if prev, dup := seen[r.ID]; dup {
			errs = append(errs, &reply.ConfigurationError{RuleID: r.ID, Index: i, Field: "id", Reason: fmt.Sprintf("duplicates rule at index %d", prev)})
		}
		seen[r.ID] = i
	}
	for _, e := range reply.ValidateRulesAll(cfg.Rules) {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// LoadFromExample unmarshals the embedded config.example.yaml as the default config.
func LoadFromExample() (*Config, error) {
	cfg, err := parse(exampleConfigBytes)
	if err != nil {
		return nil, fmt.Errorf("example config: %w", err)
	}
	return cfg, nil
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// ResolveHome returns the INBOXAGENT_HOME directory.
// Priority: INBOXAGENT_HOME env > ~/.inboxagent/
func ResolveHome() string {
	if home := os.Getenv("INBOXAGENT_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".inboxagent"
	}
	return filepath.Join(userHome, ".inboxagent")
}

// ResolveConfigPath finds the config file.
// Priority: --config flag > INBOXAGENT_HOME/config.yaml
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(ResolveHome(), "config.yaml")
}

var pathOverride atomic.Pointer[string]

// SetPath overrides the process-wide config path (the --config flag).
func SetPath(p string) {
	if p != "" {
		pathOverride.Store(&p)
	}
}

// Path returns the process-wide config file path.
// All components should use this instead of receiving the path by parameter.
func Path() string {
	if p := pathOverride.Load(); p != nil {
		return *p
	}
	return ResolveConfigPath("")
}

// GenerateToken returns a random hex token (32 bytes = 64 chars) for gateway auth.
func GenerateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "fallback-token-please-set-gateway-auth-token-in-config"
	}
	return hex.EncodeToString(b)
}

// CreateFromExample writes the embedded config.example.yaml to targetPath with token placeholder replaced by a generated token.
func CreateFromExample(targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	token := GenerateToken()
	content := strings.ReplaceAll(string(exampleConfigBytes), "${INBOXAGENT_TOKEN}", token)
	if err := os.WriteFile(targetPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Write marshals cfg to YAML and writes it to path atomically. Creates parent directory if needed.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmpPath, path)
}
