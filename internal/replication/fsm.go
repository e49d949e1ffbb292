package replication

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
	"github.com/sirupsen/logrus"

	"github.com/ASHISH26940/registrar/internal/persistence"
	"github.com/ASHISH26940/registrar/internal/store"
)

// FSM is a Finite State Machine that applies Raft logs to the student store.
// Recovery is Raft's job (snapshot plus log); the WAL is an ordered record of
// every committed command.
type FSM struct {
	store *store.Store
	wal   *persistence.WAL
	log   logrus.FieldLogger

	// walIndex is the highest raft index already in the WAL. Raft
	// re-delivers committed entries after a restart and they must not be
	// logged twice.
	walIndex uint64
}

// NewFSM creates an FSM over st that logs nothing.
func NewFSM(st *store.Store, logger logrus.FieldLogger) *FSM {
	return &FSM{
		store: st,
		log:   logger,
	}
}

// OpenFSM creates an FSM over st that appends committed commands to the WAL
// at walPath.
func OpenFSM(st *store.Store, walPath string, logger logrus.FieldLogger) (*FSM, error) {
	last, err := lastIndex(walPath)
	if err != nil {
		return nil, err
	}
	wal, err := persistence.NewWAL(walPath)
	if err != nil {
		return nil, err
	}

	f := NewFSM(st, logger)
	f.wal = wal
	f.walIndex = last
	return f, nil
}

// Close closes the WAL, if any.
func (f *FSM) Close() error {
	if f.wal == nil {
		return nil
	}
	return f.wal.Close()
}

// Apply applies a Raft log entry to the store AFTER writing it to the WAL.
// The returned value is the command's error, or nil.
func (f *FSM) Apply(entry *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		f.log.WithError(err).Error("FSM: failed to decode command")
		return fmt.Errorf("decode command: %w", err)
	}

	if f.wal != nil && entry.Index > f.walIndex {
		if err := f.wal.Append(walEntry{Index: entry.Index, Command: cmd}); err != nil {
			f.log.WithError(err).Panic("FSM: failed to write command to WAL")
		}
		f.walIndex = entry.Index
	}

	f.log.WithFields(logrus.Fields{
		"op":            cmd.Op,
		"studentNumber": cmd.StudentNumber,
		"index":         entry.Index,
		"commandID":     cmd.ID,
	}).Debug("FSM: applying command")

	return applyCommand(f.store, cmd)
}

// Snapshot captures the full store for log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	data, err := f.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{data: data}, nil
}

// Restore replaces the store with a snapshot's contents.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return f.store.Restore(data)
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

// lastIndex returns the highest index recorded in the WAL at path.
func lastIndex(path string) (uint64, error) {
	var last uint64
	err := persistence.Replay(path, func(line []byte) error {
		var e walEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("decode wal entry: %w", err)
		}
		last = max(last, e.Index)
		return nil
	})
	return last, err
}
