package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"spamguard_server/config"
	"spamguard_server/internal/bootstrap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if exists (for local development)
	_ = godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	log := bootstrap.NewLogger(cfg)

	deps, cleanup, err := bootstrap.NewDependencies(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dependencies")
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var worker *bootstrap.Worker
	if *mode == "worker" || *mode == "all" {
		worker = bootstrap.NewWorker(deps)
		go func() {
			if err := worker.Start(); err != nil {
				log.Error().Err(err).Msg("worker stopped with error")
			}
		}()
		log.Info().Str("worker_id", cfg.WorkerID).Msg("worker started")
	}

	if *mode == "api" || *mode == "all" {
		app := bootstrap.NewAPI(deps)

		go func() {
			<-sigChan
			log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down")
			if worker != nil {
				worker.Stop()
			}
			if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				log.Error().Err(err).Msg("error shutting down api")
			}
		}()

		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Msg("starting api server")
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("api server failed")
		}
		return
	}

	if *mode == "worker" {
		<-sigChan
		log.Info().Msg("shutting down worker")

		done := make(chan struct{})
		go func() {
			worker.Stop()
			close(done)
		}()
		select {
		case <-done:
			log.Info().Msg("worker shut down gracefully")
		case <-time.After(shutdownTimeout):
			log.Warn().Msg("worker shutdown timed out, forcing exit")
			os.Exit(1)
		}
		return
	}

	log.Fatal().Str("mode", *mode).Msg("unknown mode")
}
