package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/riky-24/bot-medsos-sub000/core/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
telegram:
  token: "123456:test-token"
  admin_id: 42
database:
  host: localhost
  port: "5432"
  user: bot
  name: medsos
vip:
  api_id: vip-id
  api_key: vip-key
  cache_ttl: 5m
tripay:
  api_key: tp-api
  private_key: tp-private
  merchant_code: T44691
  channel_cache_ttl: 45m
callback:
  addr: ":9091"
shop:
  store_name: Toko Uji
  page_size: 6
session:
  ttl: 48h
limits:
  refresh_cooldown: 5s
metrics:
  namespace: uji
`

func TestLoadComposedConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Core.Telegram.Token; got != "123456:test-token" {
		t.Fatalf("telegram token = %q", got)
	}
	if got := cfg.Core.Telegram.AdminID; got != 42 {
		t.Fatalf("admin id = %d, want 42", got)
	}
	if got := cfg.Core.Telegram.RunMode; got != coreconfig.RunModeLongpoll {
		t.Fatalf("run mode = %q, want longpoll default", got)
	}
	if got := cfg.Database.Host; got != "localhost" {
		t.Fatalf("database host = %q", got)
	}
	if got := cfg.VIP.CacheTTL; got != 5*time.Minute {
		t.Fatalf("vip cache ttl = %v, want 5m", got)
	}
	if got := cfg.Tripay.ChannelCacheTTL; got != 45*time.Minute {
		t.Fatalf("channel cache ttl = %v, want 45m", got)
	}
	if got := cfg.Callback.Addr; got != ":9091" {
		t.Fatalf("callback addr = %q", got)
	}
	if got := cfg.Shop.StoreName; got != "Toko Uji" {
		t.Fatalf("store name = %q", got)
	}
	if got := cfg.Shop.PageSize; got != 6 {
		t.Fatalf("page size = %d, want 6", got)
	}
	if got := cfg.Session.TTL; got != 48*time.Hour {
		t.Fatalf("session ttl = %v, want 48h", got)
	}
	if got := cfg.Limits.RefreshCooldown; got != 5*time.Second {
		t.Fatalf("refresh cooldown = %v, want 5s", got)
	}
	if got := cfg.Metrics.Namespace; got != "uji" {
		t.Fatalf("metrics namespace = %q", got)
	}

	if cfg.CoreConfig() != &cfg.Core {
		t.Fatalf("CoreConfig() does not point at the embedded core section")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
telegram:
  token: "123456:test-token"
vip:
  api_id: vip-id
  api_key: vip-key
tripay:
  api_key: tp-api
  private_key: tp-private
  merchant_code: T44691
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Session.MaxIdle; got != 24*time.Hour {
		t.Fatalf("session max idle = %v, want 24h", got)
	}
	if got := cfg.Session.SweepEvery; got != 10*time.Minute {
		t.Fatalf("session sweep = %v, want 10m", got)
	}
	if got := cfg.Limits.RefreshCooldown; got != 3*time.Second {
		t.Fatalf("refresh cooldown = %v, want 3s", got)
	}
	if got := cfg.Limits.ValidateMax; got != 5 {
		t.Fatalf("validate max = %d, want 5", got)
	}
	if got := cfg.Limits.ValidateWindow; got != 10*time.Minute {
		t.Fatalf("validate window = %v, want 10m", got)
	}
	if got := cfg.Limits.SweepEvery; got != time.Minute {
		t.Fatalf("limit sweep = %v, want 1m", got)
	}
	if got := cfg.Metrics.Namespace; got != "medsos" {
		t.Fatalf("metrics namespace = %q, want medsos", got)
	}
}

func TestLoadRequiresProviderCreds(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "123456:test-token"
tripay:
  api_key: tp-api
  private_key: tp-private
  merchant_code: T44691
`))
	if err == nil || !strings.Contains(err.Error(), "vip.api_id") {
		t.Fatalf("Load() error = %v, want vip.api_id complaint", err)
	}
}

func TestLoadRequiresGatewayCreds(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "123456:test-token"
vip:
  api_id: vip-id
  api_key: vip-key
`))
	if err == nil || !strings.Contains(err.Error(), "tripay.api_key") {
		t.Fatalf("Load() error = %v, want tripay.api_key complaint", err)
	}
}

func TestLoadSimulatedModeSkipsGatewayCreds(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
telegram:
  token: "123456:test-token"
vip:
  api_id: vip-id
  api_key: vip-key
shop:
  simulate_payment: true
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Shop.SimulatePayment {
		t.Fatalf("simulate_payment not parsed")
	}
	if cfg.Tripay.APIKey != "" {
		t.Fatalf("tripay api key = %q, want empty", cfg.Tripay.APIKey)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("SHOP_STORE_NAME", "Toko Env")

	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Shop.StoreName; got != "Toko Env" {
		t.Fatalf("store name = %q, want env override", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("Load() on a missing file succeeded")
	}
}
