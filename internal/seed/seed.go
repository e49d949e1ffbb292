// Package seed loads demonstration students into an empty repository.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/store"
)

// Inserter is the write side Load needs.
type Inserter interface {
	Insert(s model.Student) error
}

type demo struct {
	number, name        string
	street, city, state string
	cgpa                float64
	backlogs, daysAgo   int
}

var demos = []demo{
	{"STU001", "Rajesh Kumar", "15 MG Road", "Bangalore", "Karnataka", 8.7, 0, 30},
	{"STU002", "Priya Sharma", "45 Marine Drive", "Mumbai", "Maharashtra", 9.5, 0, 25},
	{"STU003", "Amit Patel", "22 Linking Road", "Mumbai", "Maharashtra", 8.8, 1, 20},
	{"STU004", "Sneha Reddy", "88 Park Street", "Hyderabad", "Telangana", 7.9, 2, 15},
	{"STU005", "Vikram Singh", "12 Connaught Place", "Delhi", "Delhi", 9.2, 0, 10},
	{"STU006", "Anjali Desai", "56 FC Road", "Pune", "Maharashtra", 8.3, 0, 8},
	{"STU007", "Karthik Menon", "34 Anna Salai", "Chennai", "Tamil Nadu", 7.5, 3, 5},
	{"STU008", "Divya Iyer", "78 Brigade Road", "Bangalore", "Karnataka", 9.0, 0, 3},
	{"STU009", "Rohan Gupta", "90 Residency Road", "Bangalore", "Karnataka", 8.1, 1, 2},
	{"STU010", "Meera Krishnan", "23 MG Road", "Kochi", "Kerala", 8.9, 0, 1},
}

// Demo returns the demonstration students, dated relative to now.
func Demo(now time.Time) []model.Student {
	out := make([]model.Student, len(demos))
	for i, d := range demos {
		ts := now.AddDate(0, 0, -d.daysAgo)
		out[i] = model.Student{
			StudentNumber: d.number,
			Name:          d.name,
			Address: model.Address{
				Street:  d.street,
				City:    d.city,
				State:   d.state,
				Country: "India",
			},
			CGPA:             d.cgpa,
			Backlogs:         d.backlogs,
			CreatedDate:      ts,
			LastModifiedDate: ts,
		}
	}
	return out
}

// Load inserts students, skipping numbers that already exist, and returns
// how many were added.
func Load(ctx context.Context, repo Inserter, students []model.Student, logger logrus.FieldLogger) (int, error) {
	logger.Info("loading sample student data")

	added := 0
	for _, s := range students {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		err := repo.Insert(s)
		switch {
		case errors.Is(err, store.ErrExists):
			logger.WithField("studentNumber", s.StudentNumber).Debug("sample student already present")
		case err != nil:
			return added, err
		default:
			added++
		}
	}

	logger.WithField("added", added).Info("sample data loaded")
	return added, nil
}
