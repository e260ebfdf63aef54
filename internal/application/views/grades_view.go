package views

import (
	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// GradesState adds per-subject averages to the report card.
type GradesState struct {
	State[[]edu.Grade]
	Summary []edu.SubjectSummary `json:"summary"`
}

// GradesView is the current user's report card.
type GradesView struct {
	*LiveView[[]edu.Grade]
}

func NewGradesView(db realtime.Database, grades *services.GradeService, cache *localcache.Cache, uid string, logger *logging.ChanneledLogger) *GradesView {
	return &GradesView{LiveView: NewLiveView(LiveConfig[[]edu.Grade]{
		DB:     db,
		Path:   services.StudentGradesPath(uid),
		Decode: grades.DecodeGrades,
		Cache:  cache,
		Key:    localcache.KeyGrades,
		TTL:    config.GradesCacheTTL,
		Logger: logger,
	})}
}

func (v *GradesView) Summary() GradesState {
	state := v.State()
	return GradesState{State: state, Summary: edu.Summarize(state.Data)}
}

func (v *GradesView) Snapshot() any { return v.Summary() }
