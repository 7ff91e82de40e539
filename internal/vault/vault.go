// internal/vault/vault.go
//
// Vault client wrapper for config secrets.
//
// Context
// -------
// Database passwords and other secrets live in HashiCorp Vault (KV v2).
// The config loader keeps `vault:<mount>/<path>#<key>` references in place
// of the secret and asks this client to resolve them at boot and on every
// Reload.  Values are cached for ResolveTTL so a burst of reloads costs one
// round trip per secret.  The token is renewed in the background for as
// long as the boot context lives.
//
// Workflow
// --------
//  1. cli, err := vault.New(ctx, log)        // VAULT_ADDR, VAULT_TOKEN
//  2. cfg, err := config.Load(ctx, cli)      // Resolve("secret/forum#db_password")
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// ResolveTTL is how long Resolve caches a secret.
const ResolveTTL = 5 * time.Minute

// Renewal back-off intervals.
const (
	retryAfterFailure = 30 * time.Second
	retryAfterExpiry  = 15 * time.Second
	retryNotRenewable = time.Hour
)

// fetchFunc reads the data map of the KV v2 secret rel under mount.
type fetchFunc func(ctx context.Context, mount, rel string) (map[string]any, error)

// Client resolves secret references.  Safe for concurrent use.
type Client struct {
	api   *vault.Client // nil in tests
	fetch fetchFunc
	log   *zap.SugaredLogger
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cached // "path#key" → value
}

type cached struct {
	val string
	exp time.Time
}

// New builds a client from the VAULT_* environment (VAULT_ADDR,
// VAULT_TOKEN, TLS settings) and starts token renewal bound to ctx.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	c := newClient(func(ctx context.Context, mount, rel string) (map[string]any, error) {
		sec, err := api.KVv2(mount).Get(ctx, rel)
		if err != nil {
			return nil, err
		}
		return sec.Data, nil
	}, log)
	c.api = api

	go c.renewLoop(ctx)
	return c, nil
}

func newClient(fetch fetchFunc, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{fetch: fetch, log: log, now: time.Now, cache: make(map[string]cached)}
}

// Resolve implements config.Secrets.  ref is "<mount>/<path>#<key>", e.g.
// "secret/forum#db_password".
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	path, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	return c.GetKV(ctx, path, key, ResolveTTL)
}

// ParseRef splits "<path>#<key>".
func ParseRef(ref string) (path, key string, err error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" {
		return "", "", fmt.Errorf("vault reference %q: want <path>#<key>", ref)
	}
	return path, key, nil
}

// GetKV returns one string field of a KV v2 secret.  ttl > 0 caches the
// value.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}
	ref := secretPath + "#" + key

	if ttl > 0 {
		if v, ok := c.cached(ref); ok {
			return v, nil
		}
	}

	mount, rel := splitMount(secretPath)
	data, err := c.fetch(ctx, mount, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}
	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s is not a string", ref)
	}

	if ttl > 0 {
		c.mu.Lock()
		c.cache[ref] = cached{val: val, exp: c.now().Add(ttl)}
		c.mu.Unlock()
	}
	c.log.Debugw("vault secret fetched", "path", secretPath, "key", key)
	return val, nil
}

func (c *Client) cached(ref string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cv, ok := c.cache[ref]
	if !ok || !c.now().Before(cv.exp) {
		return "", false
	}
	return cv.val, true
}

/*──────────────────────────── token renewal ───────────────────────────────*/

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		wait := c.watchToken(ctx)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// watchToken renews the token until renewal ends and returns how long to
// wait before starting over.
func (c *Client) watchToken(ctx context.Context) time.Duration {
	sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
	if err != nil {
		c.log.Warnw("vault token renew-self failed", "err", err)
		return retryAfterFailure
	}
	if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
		c.log.Infow("vault token is not renewable", "retry_in", retryNotRenewable)
		return retryNotRenewable
	}

	w, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
		Secret:    sec,
		Increment: sec.Auth.LeaseDuration,
	})
	if err != nil {
		c.log.Warnw("vault lifetime watcher init failed", "err", err)
		return retryAfterFailure
	}
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return retryAfterExpiry
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_seconds", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

// splitMount turns "secret/forum/db" into ("secret", "forum/db").
func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}
