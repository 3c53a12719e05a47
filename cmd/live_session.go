package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/live-session/internal/bt"
	"github.com/lowaak/smart-trainer/live-session/internal/config"
	"github.com/lowaak/smart-trainer/live-session/internal/fitfile"
	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/mqtt"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
	"github.com/lowaak/smart-trainer/live-session/internal/store"
	"github.com/lowaak/smart-trainer/live-session/internal/ui"
	"github.com/lowaak/smart-trainer/live-session/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "live-session: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "live-session: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFile := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}
	defer logFile.Close()

	logTail := ui.NewLogTail(500)
	var logOut io.Writer = io.MultiWriter(logFile, logTail)
	if !cfg.UI {
		// without the dashboard the terminal is free for log output
		logOut = io.MultiWriter(logFile, os.Stderr)
	}
	logger := log.New(logOut, "", log.LstdFlags|log.Lmicroseconds)
	logger.Printf("Main: Starting (ftp %d, sport %s, training %d)", cfg.FTP, cfg.Sport, cfg.Training)

	training, err := session.TrainingByIndex(cfg.Training)
	if err != nil {
		return err
	}
	threshold := session.NewStaticThreshold(cfg.FTP)

	aggregator := live.NewAggregator(logger)
	defer aggregator.Shutdown()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := store.New(ctx, db, logger)
	if err != nil {
		return err
	}

	switch {
	case cfg.Synthetic:
		aggregator.SetSynthetic(true)
	case cfg.MockSensors:
		mockSensors := live.NewMockSensors(logger, aggregator, 0, nil)
		mockSensors.Start()
		defer mockSensors.Shutdown()
	case cfg.BLE.Enabled:
		manager := bt.NewManager(bluetooth.DefaultAdapter, logger)
		if err := manager.Enable(); err != nil {
			return fmt.Errorf("failed to enable BLE stack: %w", err)
		}
		defer manager.Shutdown()

		link := bt.NewSensorLink(manager, aggregator, logger, cfg.BLE.ScanTimeout, bt.WithDevicePreferences(sessions))
		link.Start(ctx)
		defer link.Shutdown()
	default:
		logger.Printf("Main: No sensor source configured")
	}

	controller := session.NewController(threshold, aggregator, logger, session.WithSummarySink(sessions))
	defer controller.Shutdown()

	if cfg.ExportDir != "" {
		defer controller.ListenToCompleted(func(completed session.Completed) {
			path, err := fitfile.ExportToDir(cfg.ExportDir, completed.Summary, completed.CompletedAt)
			if err != nil {
				logger.Printf("Main: FIT export failed: %v", err)
				return
			}
			logger.Printf("Main: Exported %s", path)
		})()
	}

	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID)
		if err != nil {
			return err
		}
		bridge := mqtt.NewBridge(publisher, aggregator, controller, logger, 0)
		defer bridge.Shutdown()
	}

	if cfg.HTTP.Addr != "" {
		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           web.New(controller, aggregator, sessions, threshold, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go_func_utils.SafeGo(logger, "HTTP", func() {
			logger.Printf("Main: HTTP listening on %s", cfg.HTTP.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("Main: HTTP server error: %v", err)
			}
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Printf("Main: HTTP shutdown: %v", err)
			}
		}()
	}

	if !cfg.UI {
		// headless runs start recording right away
		controller.Start(training.Title, cfg.Sport, training.Flatten())
		controller.Resume()
		<-ctx.Done()
		logger.Printf("Main: Shutting down")
		// finishes and stores the session unless it already completed
		controller.Stop()
		return nil
	}

	dashboard := ui.NewDashboard(ui.DashboardArgs{
		Controls:  controller,
		Live:      aggregator,
		Threshold: threshold,
		Training:  training,
		Sport:     cfg.Sport,
		Logs:      logTail,
		Logger:    logger,
	})
	err = dashboard.Run(ctx)
	logger.Printf("Main: Shutting down")
	return err
}
