package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/raft"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/store"
)

// ErrNotLeader is returned for writes submitted to a follower.
var ErrNotLeader = errors.New("writes must be sent to the leader")

// RaftNode is the part of *raft.Raft the replicated store uses. Tests
// substitute a fake.
type RaftNode interface {
	Apply(cmd []byte, timeout time.Duration) raft.ApplyFuture
	State() raft.RaftState
	Leader() raft.ServerAddress
}

// Store serves reads from the local copy and sends writes through Raft.
// Reads on a follower may be slightly stale.
type Store struct {
	*store.Store

	node    RaftNode
	timeout time.Duration
}

// NewStore wraps local, which must be the store the node's FSM applies to.
func NewStore(local *store.Store, node RaftNode, timeout time.Duration) *Store {
	return &Store{Store: local, node: node, timeout: timeout}
}

// Insert replicates an insert.
func (s *Store) Insert(st model.Student) error {
	return s.apply(newCommand(OpInsert, st.StudentNumber, &st))
}

// Replace replicates a replace.
func (s *Store) Replace(st model.Student) error {
	return s.apply(newCommand(OpReplace, st.StudentNumber, &st))
}

// Swap replicates a replace that only applies while the record equals prev.
func (s *Store) Swap(prev, next model.Student) error {
	cmd := newCommand(OpReplace, next.StudentNumber, &next)
	cmd.Prev = &prev
	return s.apply(cmd)
}

// Delete replicates a delete.
func (s *Store) Delete(number string) error {
	return s.apply(newCommand(OpDelete, number, nil))
}

func (s *Store) apply(cmd Command) error {
	if s.node.State() != raft.Leader {
		return s.notLeader()
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	// Blocks until a majority has committed the entry and the local FSM
	// has applied it.
	future := s.node.Apply(data, s.timeout)
	if err := future.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return s.notLeader()
		}
		return fmt.Errorf("apply %s command: %w", cmd.Op, err)
	}

	if resp, ok := future.Response().(error); ok && resp != nil {
		return resp
	}
	return nil
}

func (s *Store) notLeader() error {
	leader := string(s.node.Leader())
	if leader == "" {
		leader = "unknown"
	}
	return fmt.Errorf("%w at: %s", ErrNotLeader, leader)
}
