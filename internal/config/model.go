// internal/config/model.go
//
// Typed configuration model for the forum daemon.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `ADEPT_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Component option structs (database pool, site cache, counters, slug
//     allocator) are embedded as-is so each package owns its own defaults.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import (
	"strings"
	"time"

	"github.com/yanizio/adept-forum/internal/counter"
	"github.com/yanizio/adept-forum/internal/database"
	"github.com/yanizio/adept-forum/internal/site"
	"github.com/yanizio/adept-forum/internal/slug"
)

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"  validate:"gte=0"`
	GeoIPDB      string        `koanf:"geoip_db"`     // optional GeoLite2-City path
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host, port,
// or flags without touching Vault.  The *secret* (`Password`) is usually a
// `vault:` reference and is spliced into the `{password}` placeholder.
type Database struct {
	Driver   string           `koanf:"driver"   validate:"required,oneof=mysql pgx"`
	DSN      string           `koanf:"dsn"      validate:"required"`
	Password string           `koanf:"password"`
	Pool     database.Options `koanf:"pool"`
}

// ResolvedDSN returns DSN with the password substituted.
func (d Database) ResolvedDSN() string {
	return strings.ReplaceAll(d.DSN, "{password}", d.Password)
}

//
// Redis section
//

// Redis is optional.  An empty URL selects the in-process cache and turns
// event publishing off.
type Redis struct {
	URL           string `koanf:"url"            validate:"omitempty,url"`
	Prefix        string `koanf:"prefix"`
	PublishEvents bool   `koanf:"publish_events"`
}

//
// Log, Auth sections
//

// Log controls the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Tee   bool   `koanf:"tee"`
}

// Auth controls principal extraction.
type Auth struct {
	TrustHeaders bool `koanf:"trust_headers"`
}

//
// Forum section
//

// Forum holds domain tunables.
type Forum struct {
	PageSize        int             `koanf:"page_size"         validate:"gte=0,lte=200"`
	RateCooldown    time.Duration   `koanf:"rate_cooldown"     validate:"gte=0"`
	FloodControl    map[string]int  `koanf:"flood_control"     validate:"dive,gte=0"`
	MemoryCacheSize int             `koanf:"memory_cache_size" validate:"gte=0"`
	Counters        counter.Options `koanf:"counters"`
	Slug            slug.Options    `koanf:"slug"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // ADEPT_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP         `koanf:"http"`
	Database Database     `koanf:"database"`
	Redis    Redis        `koanf:"redis"`
	Log      Log          `koanf:"log"`
	Auth     Auth         `koanf:"auth"`
	Site     site.Options `koanf:"site"`
	Forum    Forum        `koanf:"forum"`
	Paths    Paths        `koanf:"-"` // not loaded from config files
}
