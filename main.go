package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"webgame/logger"
	"webgame/server"
	"webgame/store"
)

// webgame 入口：webgame [-config file] [port [workers]]
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "YAML config file (default $WEBGAME_CONFIG)")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyArgs(flag.Args()); err != nil {
		return err
	}
	runtime.GOMAXPROCS(cfg.Server.Workers)

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := logger.Init(cfg.LoggerOptions()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Store.Kind, cfg.RedisOptions())
	if err != nil {
		return err
	}
	sched := server.NewScheduler(st, server.NewMetrics(), server.Options{
		GameName:     cfg.Game.Name,
		TickDuration: cfg.Game.TickDuration,
		Conn:         cfg.ConnOptions(),
	})

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = sched.StartPersistence(startCtx)
	cancel()
	if err != nil {
		logger.Log.Errorf("STARTUP: %v", err)
		return err
	}
	sched.StartGame()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{Addr: cfg.Addr(), Handler: server.NewRouter(sched)}
	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Infof("webgame %q listening on %s with %d workers", cfg.Game.Name, cfg.Addr(), cfg.Server.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 控制台 exit、Ctrl+C 或监听失败都触发优雅退出
	quit := make(chan struct{})
	console := server.NewConsole(os.Stdin, os.Stdout, sched, func() { close(quit) })
	go console.Run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
	case s := <-sig:
		logger.Log.Infof("signal %s received", s)
	case runErr = <-serveErr:
		logger.Log.Errorf("listen: %v", runErr)
	}

	logger.Log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.CloseTimeout+5*time.Second)
	defer cancel()
	err = multierr.Combine(runErr, srv.Shutdown(ctx), sched.Shutdown(ctx))
	if err != nil {
		logger.Log.Errorf("shutdown: %v", err)
	}
	return err
}
