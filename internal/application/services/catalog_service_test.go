package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

func TestCatalogOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "videos/a", edu.Video{Title: "old", Timestamp: 1}))
	require.NoError(t, db.Set(ctx, "videos/b", edu.Video{Title: "new", Timestamp: 2}))
	require.NoError(t, db.Set(ctx, "events/x", edu.Event{Title: "prova", Date: "2026-12-01"}))
	require.NoError(t, db.Set(ctx, "events/y", edu.Event{Title: "feira", Date: "2026-11-02"}))
	require.NoError(t, db.Set(ctx, ClassPath("b"), edu.Class{Name: "9º", ProfessorID: "prof"}))
	require.NoError(t, db.Set(ctx, ClassPath("a"), edu.Class{Name: "6º", Members: map[string]bool{"prof": true}}))
	svc := NewCatalogService(db, logging.NewNopLogger())

	videos, err := svc.FetchVideos(ctx)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "b", videos[0].ID)

	events, err := svc.FetchEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "feira", events[0].Title)

	classes, err := svc.FetchClasses(ctx, "prof")
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "6º", classes[0].Name)

	none, err := svc.FetchClasses(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDecodeProfilesAndFollows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, edu.Profile{UID: "z", Name: "Zeca"})
	seedProfile(t, db, edu.Profile{UID: "a", Name: "ana"})
	require.NoError(t, db.Set(ctx, FollowingPath("a"), edu.Follows{"z": true}))
	svc := NewCatalogService(db, logging.NewNopLogger())

	snap, err := db.Get(ctx, ProfilesPath)
	require.NoError(t, err)
	profiles, err := svc.DecodeProfiles(snap)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].UID)

	snap, err = db.Get(ctx, FollowingPath("a"))
	require.NoError(t, err)
	follows, err := svc.DecodeFollows(snap)
	require.NoError(t, err)
	assert.True(t, follows["z"])

	snap, err = db.Get(ctx, FollowingPath("nobody"))
	require.NoError(t, err)
	follows, err = svc.DecodeFollows(snap)
	require.NoError(t, err)
	assert.Empty(t, follows)

	_, err = svc.Profile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
