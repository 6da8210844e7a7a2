package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dubwatch/dubwatch/internal/api"
	"github.com/dubwatch/dubwatch/internal/client"
	"github.com/dubwatch/dubwatch/internal/config"
	"github.com/dubwatch/dubwatch/internal/history"
	"github.com/dubwatch/dubwatch/internal/job"
	"github.com/dubwatch/dubwatch/internal/track"
	"github.com/dubwatch/dubwatch/internal/webhook"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	filePath := flag.String("file", "", "submit this audio file and stream progress instead of serving")
	startTime := flag.String("start", "", "trim window start in seconds (with -file)")
	endTime := flag.String("end", "", "trim window end in seconds (with -file)")
	language := flag.String("language", "", "target language (with -file)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	var store history.Store
	if cfg.HistoryDBPath != "" {
		s, err := history.NewSQLiteStore(cfg.HistoryDBPath)
		if err != nil {
			slog.Error("history store", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	} else {
		store = history.NewMemoryStore(cfg.HistoryLimit)
	}

	ctrl := track.New(client.New(cfg.ServiceURL), store, track.Options{
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		TickInterval: time.Duration(cfg.TickIntervalMS) * time.Millisecond,
	})
	defer ctrl.Close()

	probeService(cfg.ServiceURL)

	if *filePath != "" {
		os.Exit(runOnce(ctrl, cfg, *filePath, *startTime, *endTime, *language))
	}

	serve(ctrl, cfg)
}

// serve runs the local control API until SIGINT/SIGTERM.
func serve(ctrl *track.Controller, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DoneWebhookURL != "" {
		go forwardResults(ctx, ctrl, cfg.DoneWebhookURL)
	}

	mux := http.NewServeMux()
	h := api.NewHandler(ctrl, cfg)
	h.RegisterRoutes(mux)

	handler := api.Chain(mux,
		api.CORS(cfg.CORSOrigins),
		api.RequestID,
		api.Logging,
		api.Auth(cfg.APIKeys),
		api.RateLimit(cfg.SubmitRateLimit, http.MethodPost, "/api/v1/jobs"),
	)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 0, // the event stream stays open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		ctrl.Cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("dubwatch listening", "addr", cfg.ListenAddr, "service", cfg.ServiceURL)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// forwardResults posts the final snapshot of every completed job to the
// configured webhook.
func forwardResults(ctx context.Context, ctrl *track.Controller, callbackURL string) {
	ch := ctrl.Subscribe()
	defer ctrl.Unsubscribe(ch)
	for {
		select {
		case event := <-ch:
			if event.Type != track.EventResult {
				continue
			}
			payload, err := json.Marshal(event.Job)
			if err != nil {
				slog.Warn("webhook payload", "error", err)
				continue
			}
			webhook.Send(ctx, callbackURL, payload)
		case <-ctx.Done():
			return
		}
	}
}

// runOnce submits a single file and streams progress to stdout until the job
// reaches a terminal status. Returns the process exit code.
func runOnce(ctrl *track.Controller, cfg *config.Config, path, start, end, language string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("read file", "path", path, "error", err)
		return 1
	}
	if language == "" {
		language = cfg.DefaultLanguage
	}

	req := &job.Request{
		FileName:  filepath.Base(path),
		File:      data,
		StartTime: start,
		EndTime:   end,
		Language:  language,
	}

	ch := ctrl.Subscribe()
	defer ctrl.Unsubscribe(ch)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	id, err := ctrl.Start(ctx, req)
	if err != nil {
		slog.Error("submit", "error", err)
		return 1
	}
	fmt.Printf("job %s submitted, dubbing to %s\n", id, language)

	for {
		select {
		case event := <-ch:
			switch event.Type {
			case track.EventStatus:
				fmt.Printf("  %-14s %3d%%  %ds elapsed\n",
					event.Job.Status, event.Job.Progress, event.Job.ElapsedSeconds)
			case track.EventPollError:
				fmt.Printf("  poll error: %s (retrying)\n", event.Message)
			case track.EventResult:
				if event.Job.Status == job.StatusDone {
					fmt.Printf("done in %ds\n", event.Job.ElapsedSeconds)
					if event.Job.FinalMixURL != "" {
						fmt.Printf("final mix: %s\n", event.Job.FinalMixURL)
					}
					return 0
				}
				fmt.Printf("job failed: %s\n", event.Job.Error)
				return 1
			}
		case <-ctx.Done():
			fmt.Println("interrupted, job keeps running on the service")
			return 130
		}
	}
}
