package query

import (
	"math"

	"github.com/ASHISH26940/registrar/internal/model"
)

// Stats summarises a snapshot of students.
type Stats struct {
	TotalStudents          int            `json:"totalStudents"`
	AverageCGPA            float64        `json:"averageCgpa"`
	StudentsWithNoBacklogs int            `json:"studentsWithNoBacklogs"`
	StudentsWithBacklogs   int            `json:"studentsWithBacklogs"`
	TopPerformers          int            `json:"topPerformers"`
	CityDistribution       map[string]int `json:"cityDistribution"`
}

// Statistics aggregates records. Cities are grouped exactly as stored.
func Statistics(records []model.Student) Stats {
	st := Stats{CityDistribution: make(map[string]int)}
	if len(records) == 0 {
		return st
	}

	var sum float64
	for _, s := range records {
		sum += s.CGPA
		if s.Backlogs == 0 {
			st.StudentsWithNoBacklogs++
		}
		if s.CGPA >= model.TopPerformerCGPA {
			st.TopPerformers++
		}
		st.CityDistribution[s.Address.City]++
	}

	st.TotalStudents = len(records)
	st.StudentsWithBacklogs = st.TotalStudents - st.StudentsWithNoBacklogs
	st.AverageCGPA = math.Round(sum/float64(st.TotalStudents)*100) / 100
	return st
}
