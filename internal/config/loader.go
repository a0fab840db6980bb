// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/dirsite.yaml` (optional; CI runs often configure by env only).
  3. Environment variables prefixed `DIRSITE_`, where `__` maps to "."
     (e.g., `DIRSITE_BACKEND__TOKEN → backend.token`).

String values of the form `vault:<mount>/<path>#<key>` are then replaced by
the secret they reference.  The Vault client is only created when at least
one such reference exists, so a plain `.env` setup never dials Vault.

After merging, the tree is unmarshalled into strongly-typed structs,
defaulted, validated, enriched with the runtime root path, and cached in
an `atomic.Pointer` for lock-free reads.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read, env overlay.
  • ERROR spans – YAML parse, secret resolution, unmarshal, validation.
  • INFO  span  – final "config loaded" with key highlights.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/vault"
)

const (
	envPrefix   = "DIRSITE_"
	vaultPrefix = "vault:"
	configFile  = "dirsite.yaml"
)

var current atomic.Pointer[Config]

// SecretResolver turns a `<path>#<key>` reference into its plain value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ResolverFactory lazily builds a SecretResolver.
type ResolverFactory func(ctx context.Context) (SecretResolver, error)

type loadOptions struct {
	root     string
	resolver ResolverFactory
}

// LoadOption tweaks a single Load call.
type LoadOption func(*loadOptions)

// WithRoot pins the root directory instead of discovering it.
func WithRoot(root string) LoadOption {
	return func(o *loadOptions) { o.root = root }
}

// WithResolver replaces the Vault-backed secret resolver.
func WithResolver(f ResolverFactory) LoadOption {
	return func(o *loadOptions) { o.resolver = f }
}

func vaultResolver(ctx context.Context) (SecretResolver, error) {
	return vault.New(ctx)
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves DIRSITE_ROOT or climbs directories until
// conf/dirsite.yaml is found.  Falls back to the working directory.
func rootDir() string {
	if r := os.Getenv(envPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", configFile)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{resolver: vaultResolver}
	for _, fn := range opts {
		fn(&o)
	}
	root := o.root
	if root == "" {
		root = rootDir()
	}
	zap.S().Debugw("config root resolved", "root", root)

	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", configFile)
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, fmt.Errorf("load %s: %w", yamlPath, err)
		}
		zap.S().Debugw("config yaml loaded", "file", yamlPath)
	}

	// Env overrides: DIRSITE_BACKEND__TOKEN → backend.token
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := resolveSecrets(ctx, k, o.resolver); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"backend", cfg.Backend.URL,
		"output_dir", cfg.Build.OutputDir,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets swaps every `vault:` string value for its secret.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, factory ResolverFactory) error {
	var keys []string
	for key, val := range k.All() {
		if s, ok := val.(string); ok && strings.HasPrefix(s, vaultPrefix) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if factory == nil {
		return errors.New("config references vault secrets but no resolver is configured")
	}
	sort.Strings(keys)

	r, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("secret resolver: %w", err)
	}
	for _, key := range keys {
		ref := strings.TrimPrefix(k.String(key), vaultPrefix)
		val, err := r.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

// applyDefaults fills every optional knob that has a sensible default.
// Relative directories are anchored at the root.
func applyDefaults(c *Config) {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.AssetPrefix == "" {
		c.HTTP.AssetPrefix = "/_astro/"
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}

	b := &c.Build
	b.OutputDir = anchor(c.Paths.Root, b.OutputDir, "dist")
	b.ContentDir = anchor(c.Paths.Root, b.ContentDir, "content")
	b.PublicDir = anchor(c.Paths.Root, b.PublicDir, "public")
	b.ThemesDir = anchor(c.Paths.Root, b.ThemesDir, "themes")
	b.GeneratorDir = anchor(c.Paths.Root, b.GeneratorDir, ".")
	if len(b.Generator) == 0 {
		b.Generator = []string{"npx", "astro", "build"}
	}
	if len(b.DefaultDirectories) == 0 {
		b.DefaultDirectories = []string{"dogparks", "desserts"}
	}
	if len(b.Dependencies) == 0 {
		b.Dependencies = []Dependency{
			{Path: "src/components/shared/", All: true},
			{Path: "src/layouts/", All: true},
			{Path: "src/styles/global.css", All: true},
		}
	}

	if c.Webhook.EventType == "" {
		c.Webhook.EventType = "content-update"
	}

	c.Deploy.ManualDir = anchor(c.Paths.Root, c.Deploy.ManualDir, "deploy")
	if c.Deploy.GitHub.Branch == "" {
		c.Deploy.GitHub.Branch = "gh-pages"
	}
	if c.Deploy.GitHub.AuthorName == "" {
		c.Deploy.GitHub.AuthorName = "dirsite"
	}
	if c.Deploy.GitHub.AuthorEmail == "" {
		c.Deploy.GitHub.AuthorEmail = "dirsite@localhost"
	}

	if c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.History.DSN == "" && c.History.Driver == "sqlite" {
		c.History.DSN = filepath.Join(c.Paths.Root, "data", "history.db")
	}

	c.Log.Dir = anchor(c.Paths.Root, c.Log.Dir, "logs")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func anchor(root, dir, def string) string {
	if dir == "" {
		dir = def
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }
