// Package config holds the server's runtime configuration, bound from
// flags and NEONBEAT_* environment variables the way the upstream
// party-game CLI binds PARTYBOX_* variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of knobs the core engine and its HTTP/WS edge
// read at startup. Fields are exported so cmd/neonbeat and internal/api
// can wire them directly; the core packages take the narrower values
// they need rather than *Config itself.
type Config struct {
	Bind   string
	Port   int
	Prefix string
	Verbose bool
	Version bool

	TLSCert string
	TLSKey  string

	// HubKeepAlive is the interval between SSE keep-alive comments sent
	// on every public and admin hub connection (spec §4.1).
	HubKeepAlive time.Duration

	// BuzzerIdentifyTimeout is the window a freshly connected buzzer
	// socket has to send its identification frame (spec §4.2).
	BuzzerIdentifyTimeout time.Duration

	// PersistCooldown is the debounce window of the Persistence
	// Coordinator (spec §4.6). Defaults to 200ms for test parity with
	// spec §8 property 5; see SPEC_FULL.md Open Question 3.
	PersistCooldown time.Duration

	// PersistRetryDelays is the optimistic-retry backoff ladder used
	// after a store Conflict. Defaults to 50/100/200/400ms.
	PersistRetryDelays []time.Duration

	// StoreBackend selects which Store implementation cmd/neonbeat
	// wires up. The concrete drivers are out of scope for this
	// module (spec §1); "memory" is the only backend implemented.
	StoreBackend string
}

func (c *Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.PersistCooldown <= 0 {
		return errors.New("persist-cooldown must be positive")
	}
	if len(c.PersistRetryDelays) == 0 {
		return errors.New("persist-retry-delays must not be empty")
	}
	return nil
}

func (c *Config) Scheme() string {
	if c.TLSCert != "" && c.TLSKey != "" {
		return "https"
	}
	return "http"
}

// NewCommand builds the root cobra command, binding every flag through
// viper so it can also be set via NEONBEAT_* environment variables,
// mirroring the upstream CLI's PARTYBOX_* convention.
func NewCommand(cfg *Config, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("NEONBEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "neonbeat-back",
		Short:         "Gameplay orchestration server for the Neon Beat blind-test game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: NEONBEAT_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: NEONBEAT_PORT)")
	fs.StringVar(&cfg.Prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: NEONBEAT_PREFIX)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: NEONBEAT_VERBOSE)")
	fs.BoolVarP(&cfg.Version, "version", "V", false, "display version and exit (env: NEONBEAT_VERSION)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to tls certificate (env: NEONBEAT_TLS_CERT)")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to tls keyfile (env: NEONBEAT_TLS_KEY)")
	fs.DurationVar(&cfg.HubKeepAlive, "hub-keepalive", 15*time.Second, "SSE keep-alive interval (env: NEONBEAT_HUB_KEEPALIVE)")
	fs.DurationVar(&cfg.BuzzerIdentifyTimeout, "buzzer-identify-timeout", 10*time.Second, "time a buzzer has to identify itself (env: NEONBEAT_BUZZER_IDENTIFY_TIMEOUT)")
	fs.DurationVar(&cfg.PersistCooldown, "persist-cooldown", 200*time.Millisecond, "debounce window for persistence writes (env: NEONBEAT_PERSIST_COOLDOWN)")
	fs.StringVar(&cfg.StoreBackend, "store-backend", "memory", "document store backend (env: NEONBEAT_STORE_BACKEND)")

	cfg.PersistRetryDelays = []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("neonbeat-back v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
