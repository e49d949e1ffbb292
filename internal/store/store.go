// Package store contains the in-memory student store.
// It is designed to be thread-safe for concurrent access.
package store

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/ASHISH26940/registrar/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for a student number.
	ErrNotFound = errors.New("store: record not found")
	// ErrExists is returned by Insert when the student number is taken.
	ErrExists = errors.New("store: record already exists")
	// ErrConflict is returned by Swap when the record changed since it was read.
	ErrConflict = errors.New("store: record changed concurrently")
)

// Store is a thread-safe mapping from student number to student.
// Values go in and come out by copy, so callers never hold a reference into
// the map.
type Store struct {
	mu   sync.RWMutex
	data map[string]model.Student
}

// NewStore initializes and returns a new empty Store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]model.Student),
	}
}

// Upsert inserts s, or replaces the record with the same student number.
func (s *Store) Upsert(st model.Student) model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[st.StudentNumber] = st
	return st
}

// Insert adds st only if its student number is free.
func (s *Store) Insert(st model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[st.StudentNumber]; ok {
		return ErrExists
	}
	s.data[st.StudentNumber] = st
	return nil
}

// Replace overwrites an existing record. It never creates one, so an update
// that loses a race with a delete does not bring the record back.
func (s *Store) Replace(st model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[st.StudentNumber]; !ok {
		return ErrNotFound
	}
	s.data[st.StudentNumber] = st
	return nil
}

// Swap replaces the record with next only while it still equals prev, which
// makes a read-modify-write safe against concurrent writers.
func (s *Store) Swap(prev, next model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[next.StudentNumber]
	if !ok {
		return ErrNotFound
	}
	if !cur.Equal(prev) {
		return ErrConflict
	}
	s.data[next.StudentNumber] = next
	return nil
}

// Get retrieves the record for a student number.
func (s *Store) Get(number string) (model.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[number]
	return st, ok
}

// Exists reports whether a record is stored under number.
func (s *Store) Exists(number string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[number]
	return ok
}

// Delete removes the record for a student number.
func (s *Store) Delete(number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[number]; !ok {
		return ErrNotFound
	}
	delete(s.data, number)
	return nil
}

// All returns a copy of every record, ordered by student number.
func (s *Store) All() []model.Student {
	s.mu.RLock()
	out := make([]model.Student, 0, len(s.data))
	for _, st := range s.data {
		out = append(out, st)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Student) int {
		return strings.Compare(a.StudentNumber, b.StudentNumber)
	})
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
}

// Snapshot encodes the full contents as JSON.
func (s *Store) Snapshot() ([]byte, error) {
	return json.Marshal(s.All())
}

// Restore replaces the full contents with a Snapshot payload.
func (s *Store) Restore(data []byte) error {
	var records []model.Student
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	restored := make(map[string]model.Student, len(records))
	for _, st := range records {
		restored[st.StudentNumber] = st
	}

	s.mu.Lock()
	s.data = restored
	s.mu.Unlock()
	return nil
}
