// Package query filters, orders, pages and aggregates snapshots of student
// records. Every function is pure: it reads the slice it is given and
// returns fresh results.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ASHISH26940/registrar/internal/model"
)

// Filter holds optional predicates. A nil field matches everything.
type Filter struct {
	Name        *string
	City        *string
	State       *string
	Country     *string
	MinCGPA     *float64
	MaxCGPA     *float64
	MaxBacklogs *int
}

// Match reports whether s satisfies every present predicate.
func (f Filter) Match(s model.Student) bool {
	if f.Name != nil && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(*f.Name)) {
		return false
	}
	if f.City != nil && !strings.EqualFold(s.Address.City, *f.City) {
		return false
	}
	if f.State != nil && !strings.EqualFold(s.Address.State, *f.State) {
		return false
	}
	if f.Country != nil && !strings.EqualFold(s.Address.Country, *f.Country) {
		return false
	}
	if f.MinCGPA != nil && s.CGPA < *f.MinCGPA {
		return false
	}
	if f.MaxCGPA != nil && s.CGPA > *f.MaxCGPA {
		return false
	}
	if f.MaxBacklogs != nil && s.Backlogs > *f.MaxBacklogs {
		return false
	}
	return true
}

// SortKey selects the field a listing is ordered by.
type SortKey int

const (
	SortByStudentNumber SortKey = iota
	SortByName
	SortByCGPA
	SortByCreatedDate
)

// ParseSortKey maps a request value onto a SortKey. Matching ignores case and
// anything unrecognised orders by student number.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(s) {
	case "name":
		return SortByName
	case "cgpa":
		return SortByCGPA
	case "createddate":
		return SortByCreatedDate
	default:
		return SortByStudentNumber
	}
}

func (k SortKey) String() string {
	switch k {
	case SortByName:
		return "name"
	case SortByCGPA:
		return "cgpa"
	case SortByCreatedDate:
		return "createdDate"
	default:
		return "studentNumber"
	}
}

func (k SortKey) compare() func(a, b model.Student) int {
	switch k {
	case SortByName:
		return func(a, b model.Student) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortByCGPA:
		return func(a, b model.Student) int {
			return cmp.Compare(a.CGPA, b.CGPA)
		}
	case SortByCreatedDate:
		return func(a, b model.Student) int {
			return a.CreatedDate.Compare(b.CreatedDate)
		}
	default:
		return func(a, b model.Student) int {
			return strings.Compare(a.StudentNumber, b.StudentNumber)
		}
	}
}

// Direction is the sort order.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// ParseDirection returns Desc for "desc" in any case and Asc otherwise.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, "desc") {
		return Desc
	}
	return Asc
}

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Comparator returns the ordering for key and dir.
func Comparator(key SortKey, dir Direction) func(a, b model.Student) int {
	c := key.compare()
	if dir == Desc {
		return func(a, b model.Student) int { return c(b, a) }
	}
	return c
}

// PageRequest is a zero-based page index and a positive page size.
type PageRequest struct {
	Number int
	Size   int
}

// PageInfo is the metadata returned alongside a page.
type PageInfo struct {
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Content []T      `json:"content"`
	Page    PageInfo `json:"page"`
}

// Search returns the records matching f, in input order.
func Search(records []model.Student, f Filter) []model.Student {
	out := make([]model.Student, 0, len(records))
	for _, s := range records {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// List filters, stably sorts and pages records.
func List(records []model.Student, f Filter, key SortKey, dir Direction, pr PageRequest) Page[model.Student] {
	filtered := Search(records, f)
	slices.SortStableFunc(filtered, Comparator(key, dir))
	return Paginate(filtered, pr)
}

// Paginate cuts one page out of items. A page starting past the end is empty
// but still reports the totals.
func Paginate[T any](items []T, pr PageRequest) Page[T] {
	total := len(items)
	info := PageInfo{Number: pr.Number, Size: pr.Size, TotalElements: total}
	if pr.Size <= 0 || pr.Number < 0 {
		return Page[T]{Content: []T{}, Page: info}
	}
	info.TotalPages = (total + pr.Size - 1) / pr.Size

	// Checked before multiplying so a huge page index cannot overflow.
	if pr.Number >= info.TotalPages {
		return Page[T]{Content: []T{}, Page: info}
	}
	start := pr.Number * pr.Size
	end := min(start+pr.Size, total)
	content := make([]T, end-start)
	copy(content, items[start:end])
	return Page[T]{Content: content, Page: info}
}
