package replication

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// NodeOptions configures a Raft node.
type NodeOptions struct {
	NodeID    string
	BindAddr  string // host:port for Raft's internal communication
	DataDir   string
	Bootstrap bool // run on the first node only
	Logger    hclog.Logger
}

// Node is a running Raft node together with the resources it owns.
type Node struct {
	*raft.Raft

	transport *raft.NetworkTransport
	logStore  *raftboltdb.BoltStore
}

// Open starts a Raft node that applies committed entries to fsm.
func Open(opts NodeOptions, fsm raft.FSM) (*Node, error) {
	if opts.NodeID == "" {
		return nil, errors.New("raft: node id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("raft: create data directory: %w", err)
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(opts.NodeID)
	raftConfig.Logger = logger

	addr, err := net.ResolveTCPAddr("tcp", opts.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raft: resolve address: %w", err)
	}
	transport, err := raft.NewTCPTransportWithLogger(opts.BindAddr, addr, 3, 10*time.Second, logger.Named("transport"))
	if err != nil {
		return nil, fmt.Errorf("raft: create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStoreWithLogger(opts.DataDir, 2, logger.Named("snapshots"))
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("raft: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(opts.DataDir, "raft.db"))
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("raft: create bolt store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, fsm, logStore, logStore, snapshots, transport)
	if err != nil {
		transport.Close()
		logStore.Close()
		return nil, fmt.Errorf("raft: create node: %w", err)
	}

	if opts.Bootstrap {
		bootstrapConfig := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raftConfig.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}
		// An existing cluster state makes this a no-op.
		if err := r.BootstrapCluster(bootstrapConfig).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			r.Shutdown()
			logStore.Close()
			return nil, fmt.Errorf("raft: bootstrap: %w", err)
		}
	}

	return &Node{Raft: r, transport: transport, logStore: logStore}, nil
}

// Close shuts the node down and releases its stores.
func (n *Node) Close() error {
	err := n.Raft.Shutdown().Error()
	if cerr := n.transport.Close(); err == nil {
		err = cerr
	}
	if cerr := n.logStore.Close(); err == nil {
		err = cerr
	}
	return err
}

// AddVoter adds a node to the cluster. Only the leader may do this.
func (n *Node) AddVoter(id, addr string) error {
	if n.Raft.State() != raft.Leader {
		return fmt.Errorf("%w at: %s", ErrNotLeader, n.Raft.Leader())
	}
	return n.Raft.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, 0).Error()
}

// Status is a summary for health reporting.
func (n *Node) Status() map[string]string {
	return map[string]string{
		"state":  n.Raft.State().String(),
		"leader": string(n.Raft.Leader()),
	}
}
