package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hlsvod/hlsvod/internal/apperr"
	"github.com/hlsvod/hlsvod/internal/cache"
	"github.com/hlsvod/hlsvod/internal/config"
	"github.com/hlsvod/hlsvod/internal/httpapi"
	"github.com/hlsvod/hlsvod/internal/index"
	"github.com/hlsvod/hlsvod/internal/observability"
	"github.com/hlsvod/hlsvod/internal/registry"
	"github.com/hlsvod/hlsvod/internal/transcode"
	"github.com/hlsvod/hlsvod/internal/version"
	"github.com/hlsvod/hlsvod/internal/workpool"
)

var (
	flagBind                string
	flagMediaRoot           string
	flagCacheMemoryMB       string
	flagCacheMaxSegments    int
	flagCacheTTLSecs        string
	flagSegmentDurationSecs float64
	flagAACBitrate          int
	flagAudioSampleRate     int
	flagTLSCert             string
	flagTLSKey              string
	flagLogLevel            string
	flagCORS                bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HLS VOD origin server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&flagBind, "bind", "", "listen address host:port (default "+config.DefaultBind+")")
	serveCmd.Flags().StringVar(&flagMediaRoot, "media-root", "", "root directory media paths are resolved against")
	serveCmd.Flags().StringVar(&flagCacheMemoryMB, "cache-memory-mb", "", "segment cache memory budget, e.g. 256MB")
	serveCmd.Flags().IntVar(&flagCacheMaxSegments, "cache-max-segments", 0, "segment cache entry-count budget")
	serveCmd.Flags().StringVar(&flagCacheTTLSecs, "cache-ttl-secs", "", "segment cache idle TTL, e.g. 5m")
	serveCmd.Flags().Float64Var(&flagSegmentDurationSecs, "segment-duration-secs", 0, "target HLS segment duration")
	serveCmd.Flags().IntVar(&flagAACBitrate, "aac-bitrate", 0, "AAC transcode target bitrate in bits/sec")
	serveCmd.Flags().IntVar(&flagAudioSampleRate, "audio-sample-rate", 0, "AAC transcode target sample rate")
	serveCmd.Flags().StringVar(&flagTLSCert, "tls-cert", "", "TLS certificate file (requires --tls-key)")
	serveCmd.Flags().StringVar(&flagTLSKey, "tls-key", "", "TLS private key file (requires --tls-cert)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&flagCORS, "cors", false, "enable permissive CORS headers")

	if err := config.BindFlags(viper.GetViper(), serveCmd.Flags()); err != nil {
		panic(err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	v := viper.GetViper()
	cfg, err := config.Load(v, cfgFile, flagBind, flagCacheMemoryMB, flagCacheTTLSecs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hlsvod: config error:", err)
		os.Exit(apperr.ExitConfigError)
	}
	if flagSegmentDurationSecs > 0 {
		cfg.Segment.TargetDurationSecs = flagSegmentDurationSecs
	}
	if flagAACBitrate > 0 {
		cfg.Audio.AACBitrate = flagAACBitrate
	}
	if flagAudioSampleRate > 0 {
		cfg.Audio.TargetSampleRate = flagAudioSampleRate
	}
	if flagTLSCert != "" {
		cfg.Server.TLSCertFile = flagTLSCert
	}
	if flagTLSKey != "" {
		cfg.Server.TLSKeyFile = flagTLSKey
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagCacheMaxSegments > 0 {
		cfg.Cache.MaxSegments = flagCacheMaxSegments
	}
	cfg.Server.CORSEnabled = cfg.Server.CORSEnabled || flagCORS
	if flagMediaRoot != "" {
		cfg.Server.MediaRoot = flagMediaRoot
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "hlsvod: config error:", err)
		os.Exit(apperr.ExitConfigError)
	}

	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	pool := workpool.New(0)
	c, err := cache.New(cfg.Cache.MaxSegments, int64(cfg.Cache.MaxMemoryMB.Bytes()), cfg.Cache.TTLSecs.Duration())
	if err != nil {
		logger.Error("initializing cache", slog.String("error", err.Error()))
		os.Exit(apperr.ExitInitFailure)
	}

	// Indexing is CPU/IO bound (full or bounded demux scan), so the
	// registry's index function runs on the blocking pool rather than
	// inline in the HTTP goroutine (spec §5).
	indexFn := func(ctx context.Context, path string) (*index.Descriptor, error) {
		return workpool.Submit(ctx, pool, func() (*index.Descriptor, error) {
			return index.Index(ctx, path)
		})
	}
	reg := registry.New(indexFn, c, cfg.Cache.TTLSecs.Duration())

	sessions := transcode.NewSessionPool()
	reg.OnEvict(sessions.CloseSource)

	reaperCtx, cancelReaper := context.WithCancel(context.Background())
	defer cancelReaper()
	go reg.RunReaper(reaperCtx, cfg.ReaperInterval.Duration())

	srv := httpapi.New(cfg, logger, reg, c, pool, sessions)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting hlsvod server",
			slog.String("bind", cfg.Server.Bind()),
			slog.String("media_root", cfg.Server.MediaRoot),
			slog.String("version", version.Version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to bind", slog.String("error", err.Error()))
			os.Exit(apperr.ExitBindFailure)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
			os.Exit(apperr.ExitInitFailure)
		}
	}

	os.Exit(apperr.ExitOK)
	return nil
}
