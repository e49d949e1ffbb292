// Package model defines the student record and the request shapes used to
// create and modify it.
package model

import "time"

// Address is the postal address embedded in every student record.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Student is one stored record. It is a plain value, so copies handed out by
// the store never alias the store's own memory.
type Student struct {
	StudentNumber    string    `json:"studentNumber"`
	Name             string    `json:"name"`
	Address          Address   `json:"address"`
	CGPA             float64   `json:"cgpa"`
	Backlogs         int       `json:"backlogs"`
	CreatedDate      time.Time `json:"createdDate"`
	LastModifiedDate time.Time `json:"lastModifiedDate"`
}

// TopPerformerCGPA is the inclusive CGPA threshold for a top performer.
const TopPerformerCGPA = 9.0

// Equal reports whether s and o hold the same values. Timestamps compare by
// instant, so a record survives a JSON round trip unchanged.
func (s Student) Equal(o Student) bool {
	return s.StudentNumber == o.StudentNumber &&
		s.Name == o.Name &&
		s.Address == o.Address &&
		s.CGPA == o.CGPA &&
		s.Backlogs == o.Backlogs &&
		s.CreatedDate.Equal(o.CreatedDate) &&
		s.LastModifiedDate.Equal(o.LastModifiedDate)
}
