// Package config loads LookinMCP's runtime configuration through viper
// (flags → LOOKINMCP_* env vars → defaults) and hands callers a plain
// struct; no component beyond this package reads viper directly.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/isnine/lookinmcp/pkg/discovery"
	"github.com/isnine/lookinmcp/pkg/requests"
)

// Config is the resolved runtime configuration for one LookinMCP process.
type Config struct {
	PortRangeStart int
	PortRangeEnd   int

	ConnectTimeout time.Duration

	TimeoutPing          time.Duration
	TimeoutAppInfo       time.Duration
	TimeoutHierarchy     time.Duration
	TimeoutAllAttrGroups time.Duration
	TimeoutModify        time.Duration
	TimeoutInvoke        time.Duration
	TimeoutListSelectors time.Duration

	EnrichmentConcurrency int

	LogDebug  bool
	DebugAddr string
}

// Defaults returns the Config that applies with no flags or env vars set.
func Defaults() Config {
	return Config{
		PortRangeStart: discovery.DefaultPortRangeStart,
		PortRangeEnd:   discovery.DefaultPortRangeEnd,

		ConnectTimeout: 5 * time.Second,

		TimeoutPing:          requests.TimeoutPing,
		TimeoutAppInfo:       requests.TimeoutAppInfo,
		TimeoutHierarchy:     requests.TimeoutHierarchy,
		TimeoutAllAttrGroups: requests.TimeoutAllAttrGroups,
		TimeoutModify:        requests.TimeoutModify,
		TimeoutInvoke:        requests.TimeoutInvoke,
		TimeoutListSelectors: requests.TimeoutListSelectors,

		EnrichmentConcurrency: 10,

		LogDebug:  false,
		DebugAddr: "",
	}
}

// BindFlags registers the overridable flags on fs and binds them into v,
// layering flags over LOOKINMCP_* environment variables over Defaults().
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	d := Defaults()

	fs.Int("port-range-start", d.PortRangeStart, "first loopback port to probe for a LookinServer agent")
	fs.Int("port-range-end", d.PortRangeEnd, "last loopback port to probe for a LookinServer agent")
	fs.Duration("connect-timeout", d.ConnectTimeout, "timeout for establishing a TCP connection")
	fs.Int("enrichment-concurrency", d.EnrichmentConcurrency, "max concurrent fetchAllAttrGroups calls during text enrichment")
	fs.Bool("debug", d.LogDebug, "enable debug-level logging")
	fs.String("debug-addr", d.DebugAddr, "if set, serve /healthz and /metrics on this address")

	v.SetEnvPrefix("LOOKINMCP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)
}

// Load resolves a Config from an already-parsed viper instance.
func Load(v *viper.Viper) Config {
	d := Defaults()
	return Config{
		PortRangeStart:        v.GetInt("port-range-start"),
		PortRangeEnd:          v.GetInt("port-range-end"),
		ConnectTimeout:        v.GetDuration("connect-timeout"),
		TimeoutPing:           d.TimeoutPing,
		TimeoutAppInfo:        d.TimeoutAppInfo,
		TimeoutHierarchy:      d.TimeoutHierarchy,
		TimeoutAllAttrGroups:  d.TimeoutAllAttrGroups,
		TimeoutModify:         d.TimeoutModify,
		TimeoutInvoke:         d.TimeoutInvoke,
		TimeoutListSelectors:  d.TimeoutListSelectors,
		EnrichmentConcurrency: v.GetInt("enrichment-concurrency"),
		LogDebug:              v.GetBool("debug"),
		DebugAddr:             v.GetString("debug-addr"),
	}
}

// PortRange returns the inclusive port range this config probes.
func (c Config) PortRange() []int {
	return discovery.PortRange(c.PortRangeStart, c.PortRangeEnd)
}
