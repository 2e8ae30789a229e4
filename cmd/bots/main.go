// bots 压测客户端：多个 worker 各自维持若干 websocket 玩家，定时随机改变方向
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"webgame/logger"
)

type options struct {
	host      string
	port      string
	workers   int
	perWorker int
	duration  time.Duration
	every     time.Duration
	speed     float64
	prefix    string
}

func (o options) url() string {
	return "ws://" + net.JoinHostPort(o.host, o.port) + "/ws"
}

// parseArgs bots [flags] <host> <port> <workers> <players per worker>
func parseArgs(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("bots", flag.ContinueOnError)
	fs.DurationVar(&o.duration, "duration", 40*time.Second, "how long the bots stay connected")
	fs.DurationVar(&o.every, "every", 250*time.Millisecond, "interval between direction changes")
	fs.Float64Var(&o.speed, "speed", 0.1, "speed requested once registered")
	fs.StringVar(&o.prefix, "prefix", "bot", "player name prefix")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 4 {
		return o, errors.New("usage: bots [flags] <host> <port> <workers> <players per worker>")
	}
	o.host, o.port = fs.Arg(0), fs.Arg(1)
	var err error
	if o.workers, err = strconv.Atoi(fs.Arg(2)); err != nil || o.workers <= 0 {
		return o, fmt.Errorf("bad worker count %q", fs.Arg(2))
	}
	if o.perWorker, err = strconv.Atoi(fs.Arg(3)); err != nil || o.perWorker <= 0 {
		return o, fmt.Errorf("bad players per worker %q", fs.Arg(3))
	}
	if o.every <= 0 || o.duration <= 0 {
		return o, errors.New("duration and interval must be positive")
	}
	return o, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logger.Init(logger.Options{File: "webgame-bots.log", Level: "info", Console: true}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	st, err := run(ctx, opts)
	logger.Log.Infof("BOTS: connected %d, failed %d, sent %d, received %d",
		st.connected.Load(), st.failed.Load(), st.sent.Load(), st.received.Load())
	if err != nil {
		logger.Log.Errorf("BOTS: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// run 启动全部 worker，运行 opts.duration 或直到 ctx 取消
func run(ctx context.Context, opts options) (*stats, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	st := &stats{}
	var wg sync.WaitGroup
	for i := 0; i < opts.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(ctx, opts, id, st)
		}(i)
	}
	wg.Wait()
	if st.connected.Load() == 0 {
		return st, fmt.Errorf("no bot could connect to %s", opts.url())
	}
	return st, nil
}

func worker(ctx context.Context, opts options, id int, st *stats) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	var bots []*bot
	for j := 0; j < opts.perWorker; j++ {
		name := fmt.Sprintf("%s-%d-%d", opts.prefix, id, j)
		b, err := dial(ctx, opts.url(), name, st)
		if err != nil {
			st.failed.Add(1)
			logger.Log.Warnf("CONNECT %s: %v", name, err)
			continue
		}
		st.connected.Add(1)
		bots = append(bots, b)
	}

	ticker := time.NewTicker(opts.every)
	defer ticker.Stop()
	for len(bots) > 0 {
		select {
		case <-ctx.Done():
			for _, b := range bots {
				b.close()
			}
			return
		case <-ticker.C:
		}

		alive := bots[:0]
		for _, b := range bots {
			if err := b.step(rnd, opts.speed); err != nil {
				logger.Log.Warnf("BOT %v", err)
				b.ws.Close()
				continue
			}
			alive = append(alive, b)
		}
		bots = alive
	}
}
