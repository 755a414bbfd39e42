// Command syncd runs the block synchronization daemon: it wires together
// configuration, an in-memory stand-in for the chainstate collaborator,
// the sync manager, the websocket block broadcaster, Prometheus metrics,
// and an operator-facing status endpoint and console. It opens no UTXO
// store and registers no peers with the manager.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/stanislav-tkach/mintlayer-core/internal/fakechain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/announce"
	"github.com/stanislav-tkach/mintlayer-core/pkg/config"
	"github.com/stanislav-tkach/mintlayer-core/pkg/logging"
	"github.com/stanislav-tkach/mintlayer-core/pkg/metrics"
	"github.com/stanislav-tkach/mintlayer-core/pkg/pubsub"
	"github.com/stanislav-tkach/mintlayer-core/pkg/syncmgr"
	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	app := &cli.App{
		Name:  "syncd",
		Usage: "mintlayer-style block synchronization daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config.yaml"},
			&cli.StringFlag{Name: "listen", Value: ":8080", Usage: "status/metrics HTTP listen address"},
			&cli.BoolFlag{Name: "console", Usage: "start the interactive operator console"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("syncd: loading config: %w", err)
		}
		cfg = loaded
	}

	log, err := logging.New(logging.Options{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("syncd: building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The chainstate collaborator itself is out of this repository's
	// scope (SPEC_FULL.md §1); fakechain stands in so the daemon has
	// something concrete to drive.
	chainstateHandle := fakechain.NewFakeChain()

	codec := transport.Codec{Magic: cfg.Sync.Magic}
	broadcaster := pubsub.NewBroadcaster(log, codec)

	collectors := metrics.New()
	reg := prometheus.NewRegistry()
	if err := collectors.Register(reg); err != nil {
		return fmt.Errorf("syncd: registering metrics: %w", err)
	}

	gate := announce.New(broadcaster, cfg.Announce.DedupCacheSize, func() {
		log.Info("syncd: initial block download done")
	})

	opts := syncmgr.Options{
		MaxRetries:               cfg.Sync.MaxRetries,
		RequestTimeout:           cfg.Sync.RequestTimeout,
		PeerInactivityTimeout:    cfg.Sync.PeerInactivityTimeout,
		MaxHeadersPerMessage:     cfg.Sync.MaxHeadersPerMessage,
		MaxInFlightBlockRequests: cfg.Sync.MaxInFlightBlockRequests,
		TickInterval:             syncmgr.DefaultOptions().TickInterval,
	}
	onMisbehave := func(id transport.PeerID, reason error) {
		log.Warn("syncmgr: peer misbehaved", zap.String("peer", string(id)), zap.Error(reason))
	}
	mgr := syncmgr.New(log, chainstateHandle, gate, collectors, opts, onMisbehave)

	mux := http.NewServeMux()
	mux.HandleFunc("/status", statusHandler(mgr, chainstateHandle, func() int { return 0 }))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/ws/blocks", broadcaster)

	srv := &http.Server{Addr: c.String("listen"), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("syncd: http server stopped", zap.Error(err))
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- mgr.Run(ctx) }()

	if c.Bool("console") {
		if err := runConsole(ctx, log, mgr, chainstateHandle); err != nil {
			log.Warn("syncd: console exited with error", zap.Error(err))
		}
		stop()
	}

	<-ctx.Done()
	_ = srv.Shutdown(context.Background())
	<-runDone
	return nil
}
