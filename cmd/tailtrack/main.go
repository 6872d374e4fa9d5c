// Command tailtrack is the demo daemon: it discovers or is told about a set
// of logs, tails each with a rotation-aware Reader, enriches and persists
// every line, and exposes per-source lag over HTTP. It boots its
// dependencies in order, then tears them down in reverse on shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"tailtrack/internal/api"
	"tailtrack/internal/banner"
	"tailtrack/internal/config"
	"tailtrack/internal/discovery"
	"tailtrack/internal/filter"
	"tailtrack/internal/realtime"
	"tailtrack/internal/reader"
	"tailtrack/internal/sink"
	"tailtrack/internal/tail"
)

func main() {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)
	banner.Print()
	logger.Info("initializing tailtrack...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithCaller().Fatal("failed to load configuration", logger.Args("error", err))
	}

	logger = pterm.DefaultLogger.WithLevel(logLevelFromString(cfg.LogLevel))
	logger.Debug("configuration loaded", logger.Args(
		"sink_path", cfg.Sink.Path,
		"server_port", cfg.Server.Port,
		"geoip_enabled", cfg.GeoIP.Enabled,
	))

	sources, err := resolveSources(cfg, logger)
	if err != nil {
		logger.WithCaller().Fatal("failed to resolve sources", logger.Args("error", err))
	}
	if len(sources) == 0 {
		logger.Warn("no sources to tail, exiting")
		return
	}

	var lineFilter filter.Filter = filter.Passthrough
	var geo *filter.GeoEnricher
	if cfg.GeoIP.Enabled {
		geo, err = filter.NewGeoEnricher(cfg.GeoIP.CityDB)
		if err != nil {
			logger.Warn("GeoIP enricher initialization failed, continuing without GeoIP", logger.Args("error", err))
		} else {
			logger.Info("GeoIP enrichment enabled")
			lineFilter = filter.Wrap(geo.Filter)
		}
	}

	var recordSink sink.Sink = sink.NullSink{}
	var retention *sink.RetentionService
	if cfg.Sink.Path != "" {
		s, err := sink.NewSQLiteSink(cfg.Sink.Path, logger)
		if err != nil {
			logger.WithCaller().Fatal("failed to open sink database", logger.Args("error", err))
		}
		recordSink = s
		retention = sink.NewRetentionService(s, logger, cfg.Sink.RetentionDays, cfg.Sink.RetentionTime, cfg.Sink.CleanupCheck, cfg.Sink.VacuumEnabled)
		retention.Start()
	} else {
		logger.Info("sink disabled by configuration")
	}

	monitor := realtime.NewMonitor(logger)
	monitor.Start(2 * time.Second)

	if err := os.MkdirAll(cfg.Sources.CursorDir, 0755); err != nil {
		logger.WithCaller().Fatal("failed to create cursor directory", logger.Args("error", err))
	}

	processors := make([]*tail.Processor, 0, len(sources))
	for _, c := range sources {
		r, err := reader.New(reader.Config{
			Log:            c.Path,
			Pos:            filepath.Join(cfg.Sources.CursorDir, c.Name+".pos"),
			Start:          reader.StartEnd,
			End:            reader.EndFuture,
			Lock:           cfg.ReaderConfig.Lock,
			CheckInode:     cfg.ReaderConfig.CheckInode,
			CheckLastline:  cfg.ReaderConfig.CheckLastline,
			CheckLog:       cfg.ReaderConfig.CheckLog,
			AutofixCursor:  cfg.ReaderConfig.AutofixCursor,
			RollbackPeriod: cfg.ReaderConfig.RollbackPeriod,
			Filter:         lineFilter,
		})
		if err != nil {
			logger.WithCaller().Error("failed to open source, skipping", logger.Args("source", c.Name, "path", c.Path, "error", err))
			continue
		}

		monitor.Register(c.Name, r)
		p := tail.NewProcessor(c.Name, c.Path, r, recordSink, logger, cfg.PollInterval)
		p.Start()
		processors = append(processors, p)
		logger.Info("tailing source", logger.Args("source", c.Name, "path", c.Path))
	}

	webServer := api.NewServer(api.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Production: cfg.Server.Production,
	}, monitor, logger)

	go func() {
		if err := webServer.Run(); err != nil {
			logger.WithCaller().Error("status API error", logger.Args("error", err))
		}
	}()

	logger.Info("tailtrack is running", logger.Args(
		"url", pterm.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port),
		"sources", len(processors),
	))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping services...")

	for _, p := range processors {
		p.Stop()
	}
	monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.WithCaller().Error("status API shutdown error", logger.Args("error", err))
	}

	if retention != nil {
		retention.Stop()
	}
	if err := recordSink.Close(); err != nil {
		logger.Warn("sink close error", logger.Args("error", err))
	}
	if geo != nil {
		geo.Close()
	}

	logger.Info("tailtrack stopped gracefully")
}

// resolveSources prefers explicitly configured sources over auto-discovery:
// if any are configured, discovery is skipped entirely.
func resolveSources(cfg *config.Config, logger *pterm.Logger) ([]discovery.Candidate, error) {
	if len(cfg.Sources.Explicit) > 0 {
		candidates := make([]discovery.Candidate, 0, len(cfg.Sources.Explicit))
		for name, path := range cfg.Sources.Explicit {
			candidates = append(candidates, discovery.Candidate{Name: name, Path: path})
		}
		logger.Info("using explicit sources", logger.Args("count", len(candidates)))
		return candidates, nil
	}

	scanner := discovery.NewScanner(logger, nil, true, []string{cfg.Sources.DiscoverRoot})
	return scanner.Scan()
}

func logLevelFromString(level string) pterm.LogLevel {
	switch strings.ToLower(level) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "info":
		return pterm.LogLevelInfo
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "fatal":
		return pterm.LogLevelFatal
	default:
		return pterm.LogLevelInfo
	}
}
