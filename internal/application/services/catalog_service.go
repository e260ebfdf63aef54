package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

// CatalogService reads the school reference data: videos, classes, events
// and the profile directory.
type CatalogService struct {
	db     realtime.Database
	logger *logging.ChanneledLogger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db realtime.Database, logger *logging.ChanneledLogger) *CatalogService {
	return &CatalogService{db: db, logger: logger}
}

func (s *CatalogService) skip(kind string) func(string, error) {
	return func(key string, err error) {
		s.logger.Cache().Warn("Skipping malformed record", "kind", kind, "key", key, "error", err)
	}
}

// FetchVideos returns the video list, newest first.
func (s *CatalogService) FetchVideos(ctx context.Context) ([]edu.Video, error) {
	snap, err := s.db.Get(ctx, VideosPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch videos: %w", err)
	}
	videos := decodeChildren(snap.Children, func(v *edu.Video, key string) {
		if v.ID == "" {
			v.ID = key
		}
	}, s.skip("video"))
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].Timestamp != videos[j].Timestamp {
			return videos[i].Timestamp > videos[j].Timestamp
		}
		return videos[i].ID > videos[j].ID
	})
	return videos, nil
}

// FetchClasses returns the classes uid belongs to or teaches, by name.
func (s *CatalogService) FetchClasses(ctx context.Context, uid string) ([]edu.Class, error) {
	snap, err := s.db.Get(ctx, ClassesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch classes: %w", err)
	}
	var mine []edu.Class
	for _, class := range decodeChildren(snap.Children, classKey, s.skip("class")) {
		if class.Members[uid] || class.ProfessorID == uid {
			mine = append(mine, class)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].Name < mine[j].Name })
	return mine, nil
}

// FetchEvents returns the school calendar in date order.
func (s *CatalogService) FetchEvents(ctx context.Context) ([]edu.Event, error) {
	snap, err := s.db.Get(ctx, EventsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	events := decodeChildren(snap.Children, func(e *edu.Event, key string) {
		if e.ID == "" {
			e.ID = key
		}
	}, s.skip("event"))
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// DecodeProfiles decodes the profiles collection in directory order.
func (s *CatalogService) DecodeProfiles(snap realtime.Snapshot) ([]edu.Profile, error) {
	profiles := decodeChildren(snap.Children, func(p *edu.Profile, key string) {
		if p.UID == "" {
			p.UID = key
		}
	}, s.skip("profile"))
	edu.SortProfiles(profiles)
	return profiles, nil
}

// DecodeFollows decodes follows/<uid>. An absent document is an empty set.
func (s *CatalogService) DecodeFollows(snap realtime.Snapshot) (edu.Follows, error) {
	follows := edu.Follows{}
	if len(snap.Value) == 0 {
		return follows, nil
	}
	if err := snap.Decode(&follows); err != nil {
		return nil, fmt.Errorf("failed to decode follows: %w", err)
	}
	return follows, nil
}

// Profile reads one profile.
func (s *CatalogService) Profile(ctx context.Context, uid string) (edu.Profile, error) {
	profile, ok, err := realtime.GetAs[edu.Profile](ctx, s.db, ProfilePath(uid))
	if err != nil {
		return edu.Profile{}, err
	}
	if !ok {
		return edu.Profile{}, ErrNotFound
	}
	if profile.UID == "" {
		profile.UID = uid
	}
	return profile, nil
}
