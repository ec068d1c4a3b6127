package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/qgin/qgin"
	"github.com/gcottom/yt-dl-queue/config"
	"github.com/gcottom/yt-dl-queue/internal"
	"github.com/gcottom/yt-dl-queue/internal/handlers"
	"github.com/gcottom/yt-dl-queue/internal/history"
	"github.com/gcottom/yt-dl-queue/internal/services/downloader"
	"github.com/gcottom/yt-dl-queue/internal/services/meta"
	"github.com/gcottom/yt-dl-queue/pkg/youtube"
	"github.com/gin-contrib/cors"
	"go.uber.org/zap"
)

func init() {
	c := color.New(color.FgCyan)
	c.Print(`
:::   ::: :::::::::::      :::::::  :::    ::: :::::::::: :::    ::: ::::::::::
:+:   :+:     :+:         :+:   :+: :+:    :+: :+:        :+:    :+: :+:
 +:+ +:+      +:+         +:+   +:+ +:+    +:+ +:+        +:+    +:+ +:+
  +#++:       +#+         +#+   +:+ +#+    +:+ +#++:++#   +#+    +:+ +#++:++#
   +#+        +#+         +#+ # +#+ +#+    +#+ +#+        +#+    +#+ +#+
   #+#        #+#         #+#  +#+  #+#    #+# #+#        #+#    #+# #+#
   ###        ###          ###### #  ########  ##########  ########  ##########
|------------------------------------------------------------------------------------|
|                    YouTube Download Queue Service v1.0.0                           |
|------------------------------------------------------------------------------------|
   `)
}

func main() {
	if err := RunServer(); err != nil {
		panic(err)
	}
}

func RunServer() error {
	ctx := zaplog.CreateAndInject(context.Background())
	zaplog.InfoC(ctx, "starting download queue server...")

	cfg, err := config.LoadConfigFromFile(os.Getenv("YT_DL_QUEUE_CONFIG"))
	if err != nil {
		zaplog.ErrorC(ctx, "failed to load config", zap.Error(err))
		return err
	}

	ffmpegPath := internal.DetectFFmpeg(cfg.FFmpegPath)
	if ffmpegPath == "" {
		zaplog.WarnC(ctx, "ffmpeg not found, audio presets are disabled")
	}

	zaplog.InfoC(ctx, "creating youtube client...")
	ytClient := youtube.NewClient()
	ytClient.FFmpegPath = ffmpegPath
	ytClient.OutputTemplate = cfg.OutputTemplate
	ytClient.ProgressInterval = cfg.ProgressInterval

	zaplog.InfoC(ctx, "creating meta service...")
	metaService := meta.NewService(ytClient, cfg.ProbeLimit, cfg.ProbeAttempts)
	ytClient.AudioTagger = metaService

	zaplog.InfoC(ctx, "opening history journal...", zap.String("path", cfg.HistoryDB))
	journal, err := history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to open history journal", zap.Error(err))
		return err
	}
	defer journal.Close()

	zaplog.InfoC(ctx, "creating downloader service...")
	board := handlers.NewStatusBoard(ctx)
	downloaderService := downloader.NewService(ctx,
		downloader.Config{MaxParallel: cfg.MaxParallel, ShutdownGrace: cfg.ShutdownGrace},
		ytClient,
		downloader.WithListener(board),
		downloader.WithMeta(metaService),
		downloader.WithJournal(journal),
	)

	zaplog.InfoC(ctx, "creating gin engine...")
	ginws := qgin.NewGinEngine(&ctx, &qgin.Config{
		UseContextMW:       true,
		UseLoggingMW:       true,
		UseRequestIDMW:     false,
		InjectRequestIDCTX: false,
		LogRequestID:       false,
		ProdMode:           true,
	})
	ginws.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	zaplog.InfoC(ctx, "setting up routes...")
	handlers.SetupRoutes(ginws, &handlers.Handlers{
		Downloader: downloaderService,
		Board:      board,
		Meta:       metaService,
		History:    journal,
		Config:     cfg,
		FFmpegPath: ffmpegPath,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: ginws}
	errCh := make(chan error, 1)
	go func() {
		zaplog.InfoC(ctx, "setup complete, now listening and serving", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		zaplog.InfoC(ctx, "received signal, shutting down", zap.String("signal", sig.String()))
	case err = <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zaplog.ErrorC(ctx, "server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownGrace+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zaplog.ErrorC(ctx, "failed to shut down http server", zap.Error(err))
	}
	if err := downloaderService.Shutdown(shutdownCtx); err != nil {
		zaplog.ErrorC(ctx, "failed to shut down downloader", zap.Error(err))
	}
	zaplog.InfoC(ctx, "shutdown complete")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
