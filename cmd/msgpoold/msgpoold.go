// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/btcsuite/msgpool/fees"
	"github.com/btcsuite/msgpool/internal/limits"
	"github.com/btcsuite/msgpool/internal/log"
	"github.com/btcsuite/msgpool/internal/version"
	"github.com/btcsuite/msgpool/memchain"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/mining"
	"github.com/btcsuite/msgpool/mining/simminer"
	"github.com/btcsuite/msgpool/netsync"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wsnotify"
	"github.com/libp2p/go-libp2p"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds the graceful shutdown of the http listeners.
const shutdownTimeout = 5 * time.Second

var (
	cfg     *config
	mpldLog = log.MainLog
)

// startHTTPServer serves handler on addr in the background.  The listener is
// opened before returning so address errors are reported to the caller.
func startHTTPServer(name, addr string, handler http.Handler) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen for %s on %s: %w", name,
			addr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mpldLog.Infof("%s listening on %s", name, listener.Addr())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mpldLog.Errorf("%s stopped: %v", name, err)
		}
	}()
	return server, nil
}

// stopHTTPServer gracefully shuts the server down.
func stopHTTPServer(name string, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		mpldLog.Warnf("Unable to shut down %s: %v", name, err)
	}
}

// msgpooldMain is the real main function for msgpoold.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func msgpooldMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, errEarlyExit) {
			return nil
		}
		return err
	}
	cfg = tcfg

	err = log.InitLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return err
	}
	defer func() {
		if log.LogRotator != nil {
			log.LogRotator.Close()
		}
	}()

	// Get a channel that will be closed when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	interrupt := interruptListener()
	defer mpldLog.Info("Shutdown complete")

	// Show version at startup.
	mpldLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	mpldLog.Infof("Using the %s network", cfg.params.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host, err := libp2p.New(
		libp2p.ListenAddrStrings(cfg.listenAddrs()...),
		libp2p.UserAgent(version.UserAgent()),
	)
	if err != nil {
		return fmt.Errorf("unable to create libp2p host: %w", err)
	}
	defer host.Close()
	for _, addr := range host.Addrs() {
		mpldLog.Infof("Listening for peers on %s/p2p/%s", addr, host.ID())
	}

	network, err := netsync.NewGossipNetwork(ctx, host, cfg.params)
	if err != nil {
		return err
	}
	defer network.Close()

	chain, err := memchain.New(cfg.params, cfg.alloc)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pool, err := mempool.New(ctx, &mempool.Config{
		Policy:       cfg.poolPolicy(),
		MiningPolicy: mining.DefaultPolicy(),
		ChainParams:  cfg.params,
		State:        chain,
		Chain:        chain,
		Publisher:    netsync.NewPublisher(network),
		SigCache:     sigs.NewSigCache(cfg.SigCacheMaxSize),
		Registerer:   registry,
	})
	if err != nil {
		return err
	}
	pool.Start()
	defer pool.Stop()

	syncManager, err := netsync.New(&netsync.Config{
		Network:     network,
		MsgPool:     pool,
		ChainParams: cfg.params,
	})
	if err != nil {
		return err
	}
	syncManager.Start()
	defer func() {
		if err := syncManager.Stop(); err != nil {
			mpldLog.Errorf("Unable to stop intake: %v", err)
		}
	}()

	if peers := cfg.peerAddrs(); len(peers) > 0 {
		n, err := network.ConnectPeers(ctx, peers)
		if err != nil {
			mpldLog.Warnf("Unable to connect to some peers: %v", err)
		}
		mpldLog.Infof("Connected to %d of %d peers", n, len(peers))
	}

	if !cfg.DisableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry,
			promhttp.HandlerOpts{}))
		server, err := startHTTPServer("Metrics server",
			cfg.MetricsListen, mux)
		if err != nil {
			return err
		}
		defer stopHTTPServer("metrics server", server)
	}

	estimator := fees.NewEstimator(cfg.params, 0)
	estimatorCtx, stopEstimator := context.WithCancel(ctx)
	estimatorDone := make(chan struct{})
	go func() {
		defer close(estimatorDone)
		err := estimator.Run(estimatorCtx, chain)
		if err != nil {
			mpldLog.Errorf("Gas premium estimator stopped: %v", err)
		}
	}()
	defer func() {
		stopEstimator()
		<-estimatorDone
	}()

	if !cfg.DisableWS {
		wsServer, err := wsnotify.NewServer(&wsnotify.Config{
			MsgPool:      pool,
			FeeEstimator: estimator,
			MaxClients:   cfg.WSMaxClients,
		})
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/ws", wsServer)
		server, err := startHTTPServer("Websocket server", cfg.WSListen,
			mux)
		if err != nil {
			return err
		}
		defer func() {
			wsServer.Stop()
			stopHTTPServer("websocket server", server)
		}()
	}

	if cfg.Generate {
		miner, err := simminer.New(&simminer.Config{
			ChainParams: cfg.params,
			Chain:       chain,
			MsgPool:     pool,
		})
		if err != nil {
			return err
		}
		miner.Start()
		defer miner.Stop()
	}

	// Wait until the interrupt signal is received.
	<-interrupt
	return nil
}

func main() {
	// Up some limits.
	if _, err := limits.SetLimits(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set limits: %v\n", err)
		os.Exit(1)
	}

	// Work around defer not working after os.Exit()
	if err := msgpooldMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
