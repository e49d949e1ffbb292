// Package replication replicates student writes through the Raft consensus
// layer and keeps a write-ahead log of every applied command.
package replication

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/store"
)

// Op names a replicated mutation.
type Op string

const (
	OpInsert  Op = "INSERT"
	OpReplace Op = "REPLACE"
	OpDelete  Op = "DELETE"
)

// Command is a single entry committed to the Raft log.
type Command struct {
	ID            string         `json:"id"`
	Op            Op             `json:"op"`
	StudentNumber string         `json:"student_number"`
	Student       *model.Student `json:"student,omitempty"`
	Prev          *model.Student `json:"prev,omitempty"` // REPLACE applies only while the record equals Prev
}

func newCommand(op Op, number string, st *model.Student) Command {
	return Command{
		ID:            uuid.NewString(),
		Op:            op,
		StudentNumber: number,
		Student:       st,
	}
}

// walEntry is one write-ahead log line. Index is the raft index in clustered
// mode and a local sequence number in journal mode.
type walEntry struct {
	Index   uint64  `json:"index"`
	Command Command `json:"command"`
}

// applyCommand runs cmd against st. Presence failures come back as
// store.ErrExists, store.ErrNotFound or store.ErrConflict and leave st
// unchanged.
func applyCommand(st *store.Store, cmd Command) error {
	switch cmd.Op {
	case OpInsert:
		if cmd.Student == nil {
			return fmt.Errorf("%s command without a student", cmd.Op)
		}
		return st.Insert(*cmd.Student)
	case OpReplace:
		if cmd.Student == nil {
			return fmt.Errorf("%s command without a student", cmd.Op)
		}
		if cmd.Prev != nil {
			return st.Swap(*cmd.Prev, *cmd.Student)
		}
		return st.Replace(*cmd.Student)
	case OpDelete:
		return st.Delete(cmd.StudentNumber)
	default:
		return fmt.Errorf("unrecognized command op %q", cmd.Op)
	}
}
