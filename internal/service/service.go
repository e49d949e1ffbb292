// Package service implements the student operations on top of a Repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/query"
	"github.com/ASHISH26940/registrar/internal/store"
)

var (
	// ErrNotFound is returned when the student number is unknown.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicate is returned when creating a student number that exists.
	ErrDuplicate = errors.New("student already exists")
)

// Repository is the storage the service needs. The in-memory store and the
// raft-replicated store both satisfy it; write methods report
// store.ErrExists, store.ErrNotFound and store.ErrConflict.
type Repository interface {
	Get(number string) (model.Student, bool)
	Exists(number string) bool
	All() []model.Student
	Count() int
	Insert(s model.Student) error
	Swap(prev, next model.Student) error
	Delete(number string) error
}

// The plain in-memory store is the standalone repository.
var _ Repository = (*store.Store)(nil)

// ListParams is everything a paged listing takes.
type ListParams struct {
	Filter    query.Filter
	SortBy    query.SortKey
	Direction query.Direction
	Page      query.PageRequest
}

// Service holds the repository and the clock used for timestamps.
type Service struct {
	repo Repository
	log  logrus.FieldLogger
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger used for operation logs.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// New creates a Service over repo.
func New(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  logrus.StandardLogger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of students matching p.Filter.
func (s *Service) List(_ context.Context, p ListParams) query.Page[model.Student] {
	s.log.WithFields(logrus.Fields{
		"page":      p.Page.Number,
		"size":      p.Page.Size,
		"sortBy":    p.SortBy,
		"sortOrder": p.Direction,
	}).Info("fetching students")

	return query.List(s.repo.All(), p.Filter, p.SortBy, p.Direction, p.Page)
}

// Search returns every student matching f, without sorting or paging.
func (s *Service) Search(_ context.Context, f query.Filter) []model.Student {
	s.log.Info("performing advanced search")
	return query.Search(s.repo.All(), f)
}

// Get returns a single student.
func (s *Service) Get(_ context.Context, number string) (model.Student, error) {
	s.log.WithField("studentNumber", number).Info("fetching student")

	st, ok := s.repo.Get(number)
	if !ok {
		return model.Student{}, notFound(number)
	}
	return st, nil
}

// Create validates req and stores a new student.
func (s *Service) Create(_ context.Context, req model.CreateRequest) (model.Student, error) {
	if err := req.Validate(); err != nil {
		return model.Student{}, err
	}
	if s.repo.Exists(req.StudentNumber) {
		return model.Student{}, duplicate(req.StudentNumber)
	}

	st := req.Student()
	now := s.now()
	st.CreatedDate = now
	st.LastModifiedDate = now

	if err := s.repo.Insert(st); err != nil {
		if errors.Is(err, store.ErrExists) {
			return model.Student{}, duplicate(req.StudentNumber)
		}
		return model.Student{}, err
	}

	s.log.WithField("studentNumber", st.StudentNumber).Info("student created")
	return st, nil
}

// Update merges the present fields of req into the stored student. The
// merge is retried when another writer changes the record between the read
// and the write, so no successful update is lost.
func (s *Service) Update(ctx context.Context, number string, req model.UpdateRequest) (model.Student, error) {
	if err := req.Validate(); err != nil {
		return model.Student{}, err
	}

	for {
		prev, ok := s.repo.Get(number)
		if !ok {
			return model.Student{}, notFound(number)
		}

		st := prev
		req.Apply(&st)
		now := s.now()
		if now.Before(st.LastModifiedDate) {
			now = st.LastModifiedDate
		}
		st.LastModifiedDate = now

		err := s.repo.Swap(prev, st)
		switch {
		case err == nil:
			s.log.WithField("studentNumber", number).Info("student updated")
			return st, nil
		case errors.Is(err, store.ErrConflict):
			s.log.WithField("studentNumber", number).Debug("student changed concurrently, retrying update")
			if err := ctx.Err(); err != nil {
				return model.Student{}, err
			}
		case errors.Is(err, store.ErrNotFound):
			return model.Student{}, notFound(number)
		default:
			return model.Student{}, err
		}
	}
}

// PartialUpdate shares Update's merge semantics: fields left out of req are
// kept in both cases.
func (s *Service) PartialUpdate(ctx context.Context, number string, req model.UpdateRequest) (model.Student, error) {
	s.log.WithField("studentNumber", number).Debug("partially updating student")
	return s.Update(ctx, number, req)
}

// Delete removes a student.
func (s *Service) Delete(_ context.Context, number string) error {
	if !s.repo.Exists(number) {
		return notFound(number)
	}
	if err := s.repo.Delete(number); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(number)
		}
		return err
	}

	s.log.WithField("studentNumber", number).Info("student deleted")
	return nil
}

// Statistics aggregates the current contents.
func (s *Service) Statistics(_ context.Context) query.Stats {
	s.log.Info("calculating student statistics")
	return query.Statistics(s.repo.All())
}

// Count returns the number of stored students.
func (s *Service) Count() int {
	return s.repo.Count()
}

func notFound(number string) error {
	return fmt.Errorf("%w with student number: %s", ErrNotFound, number)
}

func duplicate(number string) error {
	return fmt.Errorf("%w with student number: %s", ErrDuplicate, number)
}
