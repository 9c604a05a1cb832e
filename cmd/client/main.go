package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/adapters/api"
	router "github.com/dkeye/Interview/internal/adapters/http"
	"github.com/dkeye/Interview/internal/adapters/media"
	"github.com/dkeye/Interview/internal/adapters/record"
	"github.com/dkeye/Interview/internal/adapters/room"
	"github.com/dkeye/Interview/internal/adapters/rtc"
	"github.com/dkeye/Interview/internal/adapters/speech"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/domain"
)

func main() {
	sessionFlag := flag.String("session", "", "interview session id")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *sessionFlag == "" {
		log.Fatal().Msg("missing -session id")
	}
	sid := domain.SessionID(*sessionFlag)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	devices := media.FeedDevices{
		CameraPath:     cfg.CameraPath,
		MicrophonePath: cfg.MicrophonePath,
	}
	sinks := rtc.FileSinkFactory{Dir: cfg.MediaDir}
	service := api.NewClient(cfg.ServiceURL, cfg.RequestTimeout)

	gate := speech.NewGate()
	player := &speech.WriterPlayer{
		Gate: gate,
		Open: func() (io.WriteCloser, error) {
			return os.OpenFile(cfg.PlaybackPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		},
	}
	engine := speech.NewEngine(speech.NewHTTPSynthesizer(cfg.TTSBaseURL, cfg.RequestTimeout), player, cfg.PreferredVoices, gate)

	connector := room.NewConnector(sid, devices, sinks, cfg.SignalURL, cfg.STUNServers)
	recorder := record.NewPipeline(devices, service, sid, cfg.RecordMax, cfg.RecordChunk, cfg.PreferredFormats)

	orch := app.NewOrchestrator(service, connector, engine, recorder, app.NewSessionState(), sid, cfg.PollInterval)

	r := router.SetupRouter(ctx, cfg, orch)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("session", string(sid)).Msg("Interview client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	if err := orch.Run(ctx); err != nil {
		// The control surface keeps serving the failed state with a path
		// back to the dashboard.
		log.Error().Err(err).Msg("session failed to initialize")
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	orch.Terminate(domain.EndClientShutdown)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}
