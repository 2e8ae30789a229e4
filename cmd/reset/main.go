// reset 清空存储命名空间并写入演示世界
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"webgame/logger"
	"webgame/server"
	"webgame/store"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "YAML config file (default $WEBGAME_CONFIG)")
	flag.Parse()

	if err := run(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	opts := cfg.LoggerOptions()
	opts.File = "webgame-reset.log"
	if err := logger.Init(opts); err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Store.Kind, cfg.RedisOptions())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return reset(ctx, st)
}

// reset 在已创建（未启动）的存储上执行清空与写入
func reset(ctx context.Context, st store.Store) error {
	logger.Log.Infof("REDIS: connecting")
	if err := st.Start(ctx); err != nil {
		return err
	}
	defer st.Stop()

	if err := st.RemoveAll(ctx); err != nil {
		return err
	}
	world := seed()
	done := make(chan error, 1)
	st.AsyncSave(world, func(err error) { done <- err })
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.Log.Infof("RESET: saved %d entities", len(world))
	return nil
}
