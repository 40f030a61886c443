package app

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Transport names accepted by --transport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
	TransportStdio     = "stdio"
)

// Options is the command configuration. Keys match the config file, the
// CAFFE_ environment variables and the flags.
type Options struct {
	Addr      string        `mapstructure:"addr"`
	Transport string        `mapstructure:"transport"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBody   int64         `mapstructure:"max_body"`
	Greeting  string        `mapstructure:"greeting"`

	Rate RateOptions `mapstructure:"rate"`
	Log  LogOptions  `mapstructure:"log"`
	OTel OTelOptions `mapstructure:"otel"`
}

// RateOptions configures per-client rate limiting. A zero limit disables it.
// Forwarding headers are only honored from TrustedProxies.
type RateOptions struct {
	Limit          int      `mapstructure:"limit"`
	Burst          int      `mapstructure:"burst"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// LogOptions configures the slog logger.
type LogOptions struct {
	Level string `mapstructure:"level"`
}

// OTelOptions toggles the OpenTelemetry SDK providers.
type OTelOptions struct {
	Enabled bool `mapstructure:"enabled"`
}

// NewOptions returns the defaults.
func NewOptions() *Options {
	return &Options{
		Addr:      ":8080",
		Transport: TransportHTTP,
		Timeout:   30 * time.Second,
		MaxBody:   1 << 20,
		Greeting:  "Hello",
		Rate:      RateOptions{Limit: 100, Burst: 20},
		Log:       LogOptions{Level: "info"},
	}
}

// AddFlags registers one flag per configuration key.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "addr", o.Addr, "Listen address for http and websocket transports")
	fs.StringVar(&o.Transport, "transport", o.Transport, "Transport to serve: http, websocket or stdio")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Per-request timeout, 0 disables it")
	fs.Int64Var(&o.MaxBody, "max-body", o.MaxBody, "Maximum request body in bytes, 0 disables the limit")
	fs.StringVar(&o.Greeting, "greeting", o.Greeting, "Greeting returned by the demo pipeline")
	fs.IntVar(&o.Rate.Limit, "rate.limit", o.Rate.Limit, "Requests per second per client, 0 disables rate limiting")
	fs.IntVar(&o.Rate.Burst, "rate.burst", o.Rate.Burst, "Burst size per client")
	fs.StringSliceVar(&o.Rate.TrustedProxies, "rate.trusted-proxies", o.Rate.TrustedProxies,
		"Proxy addresses or CIDRs whose X-Forwarded-For is trusted for client keys")
	fs.StringVar(&o.Log.Level, "log.level", o.Log.Level, "Log level: debug, info, warn or error")
	fs.BoolVar(&o.OTel.Enabled, "otel.enabled", o.OTel.Enabled, "Install the OpenTelemetry SDK providers")
}

// flagKeys maps flag names to configuration keys where they differ.
var flagKeys = map[string]string{
	"max-body":             "max_body",
	"rate.trusted-proxies": "rate.trusted_proxies",
}

// Validate checks the options.
func (o *Options) Validate() error {
	switch o.Transport {
	case TransportHTTP, TransportWebSocket, TransportStdio:
	default:
		return fmt.Errorf("unknown transport %q", o.Transport)
	}
	if o.Transport != TransportStdio && o.Addr == "" {
		return fmt.Errorf("addr is required for the %s transport", o.Transport)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if o.MaxBody < 0 {
		return fmt.Errorf("max_body must not be negative")
	}
	if o.Rate.Limit < 0 || o.Rate.Burst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}
	if _, err := o.Rate.proxies(); err != nil {
		return err
	}
	if _, err := o.Log.level(); err != nil {
		return err
	}
	return nil
}

// proxies parses TrustedProxies. A bare address trusts that host only.
func (o RateOptions) proxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(o.TrustedProxies))
	for _, p := range o.TrustedProxies {
		p = strings.TrimSpace(p)
		if !strings.Contains(p, "/") {
			addr, err := netip.ParseAddr(p)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

func (o LogOptions) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(o.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	return l, nil
}
