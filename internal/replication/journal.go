package replication

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/persistence"
	"github.com/ASHISH26940/registrar/internal/store"
)

// Journal is a single-node durable repository: every write is appended to
// the WAL before it is applied, and opening the journal replays the WAL
// onto an empty store.
type Journal struct {
	*store.Store

	mu  sync.Mutex
	wal *persistence.WAL
	seq uint64
}

// OpenJournal replays the WAL at path into st and opens it for appending.
// st should be empty.
func OpenJournal(st *store.Store, path string) (*Journal, error) {
	var seq uint64
	err := persistence.Replay(path, func(line []byte) error {
		var e walEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("decode wal entry: %w", err)
		}
		// Commands that failed when first run fail the same way here.
		_ = applyCommand(st, e.Command)
		seq = max(seq, e.Index)
		return nil
	})
	if err != nil {
		return nil, err
	}

	wal, err := persistence.NewWAL(path)
	if err != nil {
		return nil, err
	}
	return &Journal{Store: st, wal: wal, seq: seq}, nil
}

// Insert logs and applies an insert.
func (j *Journal) Insert(s model.Student) error {
	return j.write(newCommand(OpInsert, s.StudentNumber, &s))
}

// Replace logs and applies a replace.
func (j *Journal) Replace(s model.Student) error {
	return j.write(newCommand(OpReplace, s.StudentNumber, &s))
}

// Swap logs and applies a conditional replace.
func (j *Journal) Swap(prev, next model.Student) error {
	cmd := newCommand(OpReplace, next.StudentNumber, &next)
	cmd.Prev = &prev
	return j.write(cmd)
}

// Delete logs and applies a delete.
func (j *Journal) Delete(number string) error {
	return j.write(newCommand(OpDelete, number, nil))
}

// Close closes the WAL.
func (j *Journal) Close() error {
	return j.wal.Close()
}

// write keeps WAL order identical to apply order.
func (j *Journal) write(cmd Command) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	if err := j.wal.Append(walEntry{Index: j.seq, Command: cmd}); err != nil {
		j.seq--
		return err
	}
	return applyCommand(j.Store, cmd)
}
