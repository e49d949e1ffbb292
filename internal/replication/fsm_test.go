package replication

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/store"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func student(number, name string) model.Student {
	ts := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	return model.Student{
		StudentNumber:    number,
		Name:             name,
		Address:          model.Address{Street: "45 Marine Drive", City: "Mumbai", State: "Maharashtra", Country: "India"},
		CGPA:             9.5,
		CreatedDate:      ts,
		LastModifiedDate: ts,
	}
}

func logEntry(t *testing.T, index uint64, cmd Command) *raft.Log {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return &raft.Log{Index: index, Data: data}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestFSM_ApplyCommands(t *testing.T) {
	st := store.NewStore()
	fsm := NewFSM(st, quietLogger())
	a := student("STU001", "Priya Sharma")

	assert.Nil(t, fsm.Apply(logEntry(t, 1, newCommand(OpInsert, a.StudentNumber, &a))))
	assert.True(t, st.Exists("STU001"))

	resp := fsm.Apply(logEntry(t, 2, newCommand(OpInsert, a.StudentNumber, &a)))
	assert.ErrorIs(t, resp.(error), store.ErrExists)

	a.Name = "Priya S"
	assert.Nil(t, fsm.Apply(logEntry(t, 3, newCommand(OpReplace, a.StudentNumber, &a))))
	got, _ := st.Get("STU001")
	assert.Equal(t, "Priya S", got.Name)

	assert.Nil(t, fsm.Apply(logEntry(t, 4, newCommand(OpDelete, "STU001", nil))))
	resp = fsm.Apply(logEntry(t, 5, newCommand(OpDelete, "STU001", nil)))
	assert.ErrorIs(t, resp.(error), store.ErrNotFound)

	resp = fsm.Apply(logEntry(t, 6, Command{Op: "EXPLODE"}))
	assert.Error(t, resp.(error))

	resp = fsm.Apply(&raft.Log{Index: 7, Data: []byte("not json")})
	assert.Error(t, resp.(error))
}

func TestFSM_ConditionalReplace(t *testing.T) {
	st := store.NewStore()
	fsm := NewFSM(st, quietLogger())
	a := student("STU001", "Priya Sharma")
	st.Upsert(a)

	// Round-trip through JSON, as a replicated command does.
	next := a
	next.CGPA = 8.1
	cmd := newCommand(OpReplace, a.StudentNumber, &next)
	cmd.Prev = &a
	assert.Nil(t, fsm.Apply(logEntry(t, 1, cmd)))

	stale := a
	stale.Backlogs = 4
	cmd = newCommand(OpReplace, a.StudentNumber, &stale)
	cmd.Prev = &a
	resp := fsm.Apply(logEntry(t, 2, cmd))
	assert.ErrorIs(t, resp.(error), store.ErrConflict)

	got, _ := st.Get("STU001")
	assert.Equal(t, 8.1, got.CGPA)
	assert.Equal(t, 0, got.Backlogs)
}

func TestFSM_WALSkipsRedeliveredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.wal")
	a := student("STU001", "Priya Sharma")
	b := student("STU002", "Amit Patel")

	fsm, err := OpenFSM(store.NewStore(), path, quietLogger())
	require.NoError(t, err)
	fsm.Apply(logEntry(t, 1, newCommand(OpInsert, a.StudentNumber, &a)))
	fsm.Apply(logEntry(t, 2, newCommand(OpInsert, b.StudentNumber, &b)))
	require.NoError(t, fsm.Close())
	assert.Equal(t, 2, countLines(t, path))

	// After a restart raft replays the committed entries onto a fresh store.
	st := store.NewStore()
	fsm, err = OpenFSM(st, path, quietLogger())
	require.NoError(t, err)
	defer fsm.Close()

	fsm.Apply(logEntry(t, 1, newCommand(OpInsert, a.StudentNumber, &a)))
	fsm.Apply(logEntry(t, 2, newCommand(OpInsert, b.StudentNumber, &b)))
	fsm.Apply(logEntry(t, 3, newCommand(OpDelete, "STU001", nil)))

	assert.Equal(t, 3, countLines(t, path))
	assert.Equal(t, []string{"STU002"}, numbers(st.All()))
}

func TestFSM_OpenToleratesTornWALTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.wal")
	a := student("STU001", "Priya Sharma")

	fsm, err := OpenFSM(store.NewStore(), path, quietLogger())
	require.NoError(t, err)
	fsm.Apply(logEntry(t, 1, newCommand(OpInsert, a.StudentNumber, &a)))
	require.NoError(t, fsm.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"index":2,"comm`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fsm, err = OpenFSM(store.NewStore(), path, quietLogger())
	require.NoError(t, err)
	defer fsm.Close()
	assert.Equal(t, uint64(1), fsm.walIndex)
	assert.Equal(t, 1, countLines(t, path))
}

type memorySink struct {
	bytes.Buffer
	cancelled bool
	closed    bool
}

func (s *memorySink) ID() string    { return "test" }
func (s *memorySink) Cancel() error { s.cancelled = true; return nil }
func (s *memorySink) Close() error  { s.closed = true; return nil }

func TestFSM_SnapshotRestore(t *testing.T) {
	src := store.NewStore()
	src.Upsert(student("STU001", "Priya Sharma"))
	src.Upsert(student("STU002", "Amit Patel"))

	snap, err := NewFSM(src, quietLogger()).Snapshot()
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()
	assert.True(t, sink.closed)
	assert.False(t, sink.cancelled)

	dst := store.NewStore()
	dst.Upsert(student("STU999", "Stale"))
	require.NoError(t, NewFSM(dst, quietLogger()).Restore(io.NopCloser(&sink.Buffer)))

	assert.Equal(t, []string{"STU001", "STU002"}, numbers(dst.All()))
}

func numbers(ss []model.Student) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.StudentNumber
	}
	return out
}
