// Package main is the entry point for the registrar server application.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/raft"
	"github.com/sirupsen/logrus"

	"github.com/ASHISH26940/registrar/internal/config"
	"github.com/ASHISH26940/registrar/internal/logging"
	"github.com/ASHISH26940/registrar/internal/replication"
	"github.com/ASHISH26940/registrar/internal/seed"
	"github.com/ASHISH26940/registrar/internal/server"
	"github.com/ASHISH26940/registrar/internal/service"
	"github.com/ASHISH26940/registrar/internal/store"
)

func main() {
	// --- Configuration and Flags ---
	configFile := flag.String("config", "", "Path to config file (.toml, .yaml or .yml)")
	bootstrap := flag.Bool("bootstrap", false, "Bootstrap the cluster (run on the first node only)")
	flag.Parse()

	cfg := config.New()
	if *configFile != "" {
		if err := cfg.Load(*configFile); err != nil {
			logrus.Fatalf("failed to load config: %v", err)
		}
	}
	if *bootstrap {
		cfg.Bootstrap = true
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("registrar stopped")
	}
}

// node is the storage stack chosen by the configured mode.
type node struct {
	repo    service.Repository
	cluster *replication.Node
	closers []func() error
}

func (n *node) close(logger logrus.FieldLogger) {
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			logger.WithError(err).Warn("error during shutdown")
		}
	}
}

func openNode(cfg *config.Config, st *store.Store, logger *logrus.Logger) (*node, error) {
	n := &node{repo: st}
	if cfg.Mode == config.ModeMemory {
		return n, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	walPath := filepath.Join(cfg.DataDir, "app.wal")

	if cfg.Mode == config.ModeJournal {
		logger.WithField("wal", walPath).Info("replaying write-ahead log")
		j, err := replication.OpenJournal(st, walPath)
		if err != nil {
			return nil, err
		}
		logger.WithField("students", st.Count()).Info("write-ahead log replay complete")
		n.repo = j
		n.closers = append(n.closers, j.Close)
		return n, nil
	}

	fsm, err := replication.OpenFSM(st, walPath, logger)
	if err != nil {
		return nil, err
	}
	n.closers = append(n.closers, fsm.Close)

	rn, err := replication.Open(replication.NodeOptions{
		NodeID:    cfg.NodeID,
		BindAddr:  cfg.RaftAddr(),
		DataDir:   cfg.DataDir,
		Bootstrap: cfg.Bootstrap,
		Logger:    logging.Raft(logger, "raft"),
	}, fsm)
	if err != nil {
		n.close(logger)
		return nil, err
	}
	n.closers = append(n.closers, rn.Close)
	n.cluster = rn
	n.repo = replication.NewStore(st, rn, cfg.ApplyTimeout.Duration)
	return n, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	st := store.NewStore()
	n, err := openNode(cfg, st, logger)
	if err != nil {
		return err
	}
	defer n.close(logger)

	svc := service.New(n.repo, service.WithLogger(logger))

	// --- Start the HTTP Server ---
	var cluster server.Cluster
	if n.cluster != nil {
		cluster = n.cluster
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.New(svc, cluster, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if n.cluster != nil {
		go startCluster(ctx, cfg, n, logger)
	} else if cfg.SeedDemo {
		loadDemo(ctx, n.repo, logger)
	}

	logger.WithFields(logrus.Fields{"mode": cfg.Mode, "node_id": cfg.NodeID}).Info("registrar node started")

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// startCluster joins an existing cluster when this node is not the
// bootstrap node, then seeds once a leader is known.
func startCluster(ctx context.Context, cfg *config.Config, n *node, logger logrus.FieldLogger) {
	if !cfg.Bootstrap {
		req := replication.JoinRequest{NodeID: cfg.NodeID, Addr: cfg.RaftAddr()}
		client := &http.Client{Timeout: 5 * time.Second}
		if err := replication.Join(ctx, client, cfg.Peers, req, logger); err != nil {
			logger.WithError(err).Error("failed to join cluster")
			return
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := replication.WaitForLeader(waitCtx, n.cluster); err != nil {
		logger.WithError(err).Warn("no raft leader yet")
		return
	}
	logger.WithField("leader", n.cluster.Leader()).Info("raft leader elected")

	if cfg.SeedDemo && n.cluster.State() == raft.Leader {
		loadDemo(ctx, n.repo, logger)
	}
}

func loadDemo(ctx context.Context, repo seed.Inserter, logger logrus.FieldLogger) {
	if _, err := seed.Load(ctx, repo, seed.Demo(time.Now()), logger); err != nil {
		logger.WithError(err).Error("failed to load sample data")
	}
}
