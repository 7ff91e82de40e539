// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `<root>/conf/.env` file.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `ADEPT_`, where `__` maps to “.”
     (e.g., `ADEPT_HTTP__LISTEN_ADDR → http.listen_addr`).

Defaults fill keys no layer set.  String values of the form
`vault:<mount>/<path>#<key>` are then swapped for the secret they name,
through the Secrets resolver.  Finally the tree is unmarshalled into
strongly-typed structs, validated, enriched with the runtime root path, and
cached in an `atomic.Pointer` for lock-free reads.  `Reload()` simply calls
`Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, vault resolution.
  • ERROR spans: YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span : final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed (bootstrap console).

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/forumd` work from any sub-directory.
  • Secret values are never logged.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "ADEPT_"

// VaultPrefix marks values resolved through Secrets.
const VaultPrefix = "vault:"

// Secrets resolves a `vault:` reference (prefix stripped) to its value.
// *vault.Client implements it.
type Secrets interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

var current atomic.Pointer[Config]

// defaults apply to keys that no layer set.
var defaults = map[string]any{
	"http.listen_addr":        ":8080",
	"database.driver":         "mysql",
	"log.level":               "info",
	"redis.prefix":            "adept:",
	"forum.memory_cache_size": 10000,
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves ADEPT_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("ADEPT_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves vault references,
// validates, and caches Config.  secrets may be nil when no value uses the
// vault prefix.
func Load(ctx context.Context, secrets Secrets) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: ADEPT_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, val); err != nil {
				return nil, err
			}
		}
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config vault resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"driver", cfg.Database.Driver,
		"redis", cfg.Redis.URL != "",
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps ADEPT_FORUM__PAGE_SIZE to forum.page_size.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// resolveSecrets replaces every `vault:` string value in k.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets Secrets) error {
	all := k.All()
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		s, ok := all[key].(string)
		if !ok || !strings.HasPrefix(s, VaultPrefix) {
			continue
		}
		if secrets == nil {
			return fmt.Errorf("config %s: vault reference but no vault client", key)
		}
		val, err := secrets.Resolve(ctx, strings.TrimPrefix(s, VaultPrefix))
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return err
		}
		zap.S().Debugw("config value resolved from vault", "key", key)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }

func Reload(ctx context.Context, secrets Secrets) error {
	_, err := Load(ctx, secrets)
	return err
}
