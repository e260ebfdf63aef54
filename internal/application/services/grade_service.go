package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

// GradeService reads report cards and lets staff record grades.
type GradeService struct {
	db     realtime.Database
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewGradeService creates a new grade service
func NewGradeService(db realtime.Database, logger *logging.ChanneledLogger) *GradeService {
	return &GradeService{db: db, logger: logger, now: time.Now}
}

// DecodeGrades decodes grades/<uid>, ordered by bimestre and subject.
func (s *GradeService) DecodeGrades(snap realtime.Snapshot) ([]edu.Grade, error) {
	studentID := snap.Key()
	grades := decodeChildren(snap.Children, func(g *edu.Grade, key string) {
		if g.ID == "" {
			g.ID = key
		}
		if g.StudentID == "" {
			g.StudentID = studentID
		}
	}, func(key string, err error) {
		s.logger.Cache().Warn("Skipping malformed grade", "gradeId", key, "error", err)
	})
	edu.SortGrades(grades)
	return grades, nil
}

// Fetch is a one-shot read of one student's grades.
func (s *GradeService) Fetch(ctx context.Context, uid string) ([]edu.Grade, error) {
	snap, err := s.db.Get(ctx, StudentGradesPath(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grades: %w", err)
	}
	return s.DecodeGrades(snap)
}

// Add validates and writes a grade. role must be the verified role of
// professorUID; only professors and admins may grade.
func (s *GradeService) Add(ctx context.Context, role edu.Role, professorUID string, g edu.Grade) (edu.Grade, error) {
	if !role.CanGrade() {
		return edu.Grade{}, ErrForbidden
	}
	g.Subject = strings.TrimSpace(g.Subject)
	if g.Date == "" {
		g.Date = s.now().Format("2006-01-02")
	}
	if err := g.Validate(); err != nil {
		return edu.Grade{}, err
	}

	g.ID = security.GenerateULID()
	g.ProfessorID = professorUID
	g.CreatedAt = s.now().UnixMilli()
	if err := s.db.Set(ctx, realtime.Join(StudentGradesPath(g.StudentID), g.ID), g); err != nil {
		return edu.Grade{}, fmt.Errorf("failed to save grade: %w", err)
	}
	s.logger.Cache().Info("Grade recorded", "studentId", logging.MaskID(g.StudentID), "subject", g.Subject, "bimestre", g.Bimestre)
	return g, nil
}
