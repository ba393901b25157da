package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/neonbeat/back/internal/api"
	"github.com/neonbeat/back/internal/buzzer"
	"github.com/neonbeat/back/internal/config"
	"github.com/neonbeat/back/internal/dispatch"
	"github.com/neonbeat/back/internal/hubs"
	"github.com/neonbeat/back/internal/logging"
	"github.com/neonbeat/back/internal/persistence"
	"github.com/neonbeat/back/internal/store"
	"github.com/neonbeat/back/internal/store/memstore"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, func(cmd *cobra.Command, args []string) error {
		if cfg.Version {
			cmd.Println("neonbeat-back v" + releaseVersion)
			return nil
		}
		return run(cmd.Context(), cfg)
	})
	cobra.CheckErr(cmd.Execute())
}

// run wires every component of the core engine together and blocks
// until the process receives an interrupt or termination signal, then
// drains the Persistence Coordinator before returning (spec §5:
// "graceful shutdown flushes every debounced write").
func run(parent context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Verbose)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := newStore(cfg, log)

	public := hubs.New(false, log)
	admin := hubs.New(true, log)

	persist := persistence.New(st, cfg.PersistCooldown, cfg.PersistRetryDelays, admin, log)

	d := dispatch.New(st, persist, public, admin, log)
	reg := buzzer.New(d, cfg.BuzzerIdentifyTimeout, log)
	d.SetRegistry(reg)

	srv := api.New(cfg, d, public, admin, reg, log)

	runCtx, cancelRun := context.WithCancel(context.Background())
	go func() {
		defer cancelRun()
		d.Run(runCtx)
	}()

	log.Info().Str("version", releaseVersion).Msg("starting neonbeat-back")

	serveErr := srv.Serve(ctx)

	cancelRun()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := persist.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("persistence shutdown did not fully flush")
	}

	return serveErr
}

// newStore selects the configured Store backend. Only "memory" is
// implemented in this module (spec §1 places concrete document-store
// drivers out of scope); any other value is a startup-time
// misconfiguration.
func newStore(cfg *config.Config, log zerolog.Logger) store.Store {
	switch cfg.StoreBackend {
	case "memory", "":
		return memstore.New()
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown store backend")
		return nil
	}
}
