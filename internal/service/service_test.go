package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/query"
	"github.com/ASHISH26940/registrar/internal/store"
)

// fakeClock hands out strictly increasing times.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.NewStore()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(st, WithClock(clock.Now), WithLogger(quietLogger())), st
}

func createReq(number string, cgpa float64, backlogs int, city string) model.CreateRequest {
	return model.CreateRequest{
		StudentNumber: number,
		Name:          "John Doe",
		Address: &model.Address{
			Street:  "123 Main St",
			City:    city,
			State:   "Maharashtra",
			Country: "India",
		},
		CGPA:     &cgpa,
		Backlogs: &backlogs,
	}
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, createReq("STU001", 8.5, 0, "Mumbai"))
	require.NoError(t, err)
	assert.False(t, created.CreatedDate.IsZero())
	assert.Equal(t, created.CreatedDate, created.LastModifiedDate)

	got, err := svc.Get(ctx, "STU001")
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestService_CreateDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("STU001", 8.5, 0, "Mumbai"))
	require.NoError(t, err)

	second := createReq("STU001", 3.0, 7, "Delhi")
	second.Name = "Someone Else"
	_, err = svc.Create(ctx, second)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "STU001")

	got, err := svc.Get(ctx, "STU001")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.Name)
	assert.Equal(t, 8.5, got.CGPA)
	assert.Equal(t, "Mumbai", got.Address.City)
}

func TestService_CreateValidation(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.Create(context.Background(), createReq("BAD", 11, -1, "Mumbai"))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 3)
	assert.Equal(t, 0, st.Count())
}

func TestService_GetNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "STU999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "student not found with student number: STU999")
}

func TestService_PartialUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before, err := svc.Create(ctx, createReq("A1", 8.5, 0, "Mumbai"))
	require.NoError(t, err)

	after, err := svc.PartialUpdate(ctx, "A1", model.UpdateRequest{CGPA: model.Some(7.0)})
	require.NoError(t, err)

	assert.Equal(t, 7.0, after.CGPA)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.Address, after.Address)
	assert.Equal(t, before.Backlogs, after.Backlogs)
	assert.Equal(t, before.CreatedDate, after.CreatedDate)
	assert.False(t, after.LastModifiedDate.Before(before.LastModifiedDate))

	stored, err := svc.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, after, stored)
}

func TestService_UpdateKeepsTimestampMonotonic(t *testing.T) {
	st := store.NewStore()
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	st.Upsert(model.Student{StudentNumber: "STU001", Name: "Old", LastModifiedDate: future})

	svc := New(st, WithLogger(quietLogger()), WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}))

	got, err := svc.Update(context.Background(), "STU001", model.UpdateRequest{Name: model.Some("New Name")})
	require.NoError(t, err)
	assert.Equal(t, future, got.LastModifiedDate)
}

func TestService_UpdateFailuresLeaveRecordIntact(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before, err := svc.Create(ctx, createReq("STU001", 8.5, 0, "Mumbai"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "STU001", model.UpdateRequest{
		Name: model.Some("Valid Name"),
		CGPA: model.Some(12.0),
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := svc.Get(ctx, "STU001")
	require.NoError(t, err)
	assert.Equal(t, before, got)

	_, err = svc.Update(ctx, "STU404", model.UpdateRequest{Name: model.Some("Nobody")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DeleteTwice(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("STU001", 8.5, 0, "Mumbai"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "STU001"))
	assert.Equal(t, 0, st.Count())

	err = svc.Delete(ctx, "STU001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListSearchStatistics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("A1", 8.5, 0, "Mumbai"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, createReq("A2", 9.5, 1, "Mumbai"))
	require.NoError(t, err)

	minCGPA := 9.0
	page := svc.List(ctx, ListParams{
		Filter:    query.Filter{MinCGPA: &minCGPA},
		SortBy:    query.SortByCGPA,
		Direction: query.Asc,
		Page:      query.PageRequest{Number: 0, Size: 20},
	})
	require.Len(t, page.Content, 1)
	assert.Equal(t, "A2", page.Content[0].StudentNumber)
	assert.Equal(t, 1, page.Page.TotalElements)
	assert.Equal(t, 1, page.Page.TotalPages)

	city := "MUMBAI"
	maxBacklogs := 0
	found := svc.Search(ctx, query.Filter{City: &city, MaxBacklogs: &maxBacklogs})
	require.Len(t, found, 1)
	assert.Equal(t, "A1", found[0].StudentNumber)

	stats := svc.Statistics(ctx)
	assert.Equal(t, 2, stats.TotalStudents)
	assert.Equal(t, 9.00, stats.AverageCGPA)
	assert.Equal(t, 1, stats.StudentsWithNoBacklogs)
	assert.Equal(t, 1, stats.StudentsWithBacklogs)
	assert.Equal(t, 1, stats.TopPerformers)
	assert.Equal(t, map[string]int{"Mumbai": 2}, stats.CityDistribution)
	assert.Equal(t, 2, svc.Count())
}

// failingRepo simulates a replicated repository that cannot accept writes.
type failingRepo struct {
	*store.Store
	err error
}

func (f failingRepo) Insert(model.Student) error    { return f.err }
func (f failingRepo) Swap(_, _ model.Student) error { return f.err }
func (f failingRepo) Delete(string) error           { return f.err }

func TestService_PropagatesRepositoryErrors(t *testing.T) {
	boom := errors.New("not the leader")
	st := store.NewStore()
	st.Upsert(model.Student{StudentNumber: "STU001", Name: "Existing"})
	svc := New(failingRepo{Store: st, err: boom}, WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("STU002", 8, 0, "Pune"))
	assert.ErrorIs(t, err, boom)

	_, err = svc.Update(ctx, "STU001", model.UpdateRequest{Name: model.Some("Renamed")})
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, svc.Delete(ctx, "STU001"), boom)

	got, _ := st.Get("STU001")
	assert.Equal(t, "Existing", got.Name)
}

func TestService_ConcurrentCreatesOfOneNumber(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.Create(ctx, createReq("STU100", 8, 0, "Pune")); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, st.Count())
}

// racingRepo holds the first two reads until both have happened, so two
// updates start from the same version of the record.
type racingRepo struct {
	*store.Store

	mu      sync.Mutex
	reads   int
	release chan struct{}
}

func (r *racingRepo) Get(number string) (model.Student, bool) {
	st, ok := r.Store.Get(number)

	r.mu.Lock()
	r.reads++
	n := r.reads
	if n == 2 {
		close(r.release)
	}
	r.mu.Unlock()

	if n <= 2 {
		<-r.release
	}
	return st, ok
}

func TestService_ConcurrentUpdatesKeepBothChanges(t *testing.T) {
	repo := &racingRepo{Store: store.NewStore(), release: make(chan struct{})}
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := New(repo, WithClock(clock.Now), WithLogger(quietLogger()))
	ctx := context.Background()

	repo.Upsert(model.Student{StudentNumber: "STU001", Name: "Rajesh Kumar", CGPA: 8.5, Backlogs: 2})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.PartialUpdate(ctx, "STU001", model.UpdateRequest{CGPA: model.Some(9.1)})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.PartialUpdate(ctx, "STU001", model.UpdateRequest{Backlogs: model.Some(0)})
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 3, repo.reads, "exactly one update should have retried")

	got, err := svc.Get(ctx, "STU001")
	require.NoError(t, err)
	assert.Equal(t, 9.1, got.CGPA)
	assert.Equal(t, 0, got.Backlogs)
	assert.Equal(t, "Rajesh Kumar", got.Name)
}
