package edu

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	MinGrade = 0
	MaxGrade = 25
)

// Grade is stored at grades/<studentUid>/<id>.
type Grade struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"studentId"`
	Subject     string  `json:"subject"`
	Bimestre    int     `json:"bimestre"`
	Grade       float64 `json:"grade"`
	Date        string  `json:"date"`
	ProfessorID string  `json:"professorId,omitempty"`
	CreatedAt   int64   `json:"createdAt"`
}

// Validate checks ranges before any write.
func (g Grade) Validate() error {
	if strings.TrimSpace(g.StudentID) == "" {
		return fmt.Errorf("%w: student is required", ErrValidation)
	}
	if strings.TrimSpace(g.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if g.Bimestre < 1 || g.Bimestre > 4 {
		return fmt.Errorf("%w: bimestre must be between 1 and 4", ErrValidation)
	}
	if math.IsNaN(g.Grade) || g.Grade < MinGrade || g.Grade > MaxGrade {
		return fmt.Errorf("%w: grade must be between %d and %d", ErrValidation, MinGrade, MaxGrade)
	}
	if g.Date != "" {
		if _, err := time.Parse("2006-01-02", g.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

// SubjectSummary aggregates one subject.
type SubjectSummary struct {
	Subject    string          `json:"subject"`
	Average    float64         `json:"average"`
	Count      int             `json:"count"`
	ByBimestre map[int]float64 `json:"byBimestre"`
}

// SortGrades orders by bimestre, subject, then date.
func SortGrades(grades []Grade) {
	sort.SliceStable(grades, func(i, j int) bool {
		a, b := grades[i], grades[j]
		if a.Bimestre != b.Bimestre {
			return a.Bimestre < b.Bimestre
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Date < b.Date
	})
}

// Summarize computes per-subject averages, rounded to two decimals.
func Summarize(grades []Grade) []SubjectSummary {
	type acc struct {
		sum, count float64
		bim        map[int][2]float64
	}
	bySubject := make(map[string]*acc)
	for _, g := range grades {
		a, ok := bySubject[g.Subject]
		if !ok {
			a = &acc{bim: make(map[int][2]float64)}
			bySubject[g.Subject] = a
		}
		a.sum += g.Grade
		a.count++
		b := a.bim[g.Bimestre]
		a.bim[g.Bimestre] = [2]float64{b[0] + g.Grade, b[1] + 1}
	}

	out := make([]SubjectSummary, 0, len(bySubject))
	for subject, a := range bySubject {
		s := SubjectSummary{
			Subject:    subject,
			Average:    round2(a.sum / a.count),
			Count:      int(a.count),
			ByBimestre: make(map[int]float64, len(a.bim)),
		}
		for bim, v := range a.bim {
			s.ByBimestre[bim] = round2(v[0] / v[1])
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
