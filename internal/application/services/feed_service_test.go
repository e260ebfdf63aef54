package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

func seedPosts(t *testing.T, db realtime.Database, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		post := edu.Post{
			ID:            fmt.Sprintf("p%02d", i),
			AuthorID:      "ana",
			Text:          fmt.Sprintf("post %d", i),
			Timestamp:     postTime(i),
			SchemaVersion: edu.CurrentSchemaVersion,
		}
		require.NoError(t, db.Set(context.Background(), PostPath(post.ID), post))
	}
}

// postTime is the timestamp seedPosts gives post i.
func postTime(i int) int64 { return 1_700_000_000_000 + int64(1000*i) }

func ids(posts []edu.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestFetchLatestReturnsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	seedPosts(t, db, 5)
	svc := NewFeedService(db, logging.NewNopLogger())

	posts, err := svc.FetchLatest(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p05", "p04", "p03"}, ids(posts))
}

func TestFetchPageReportsHasMoreExactly(t *testing.T) {
	db := newTestDB(t)
	seedPosts(t, db, 7)
	svc := NewFeedService(db, logging.NewNopLogger())
	ctx := context.Background()

	page, hasMore, err := svc.FetchPage(ctx, realtime.Cursor{Value: postTime(5), Key: "p05"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p04", "p03"}, ids(page))
	assert.True(t, hasMore)

	page, hasMore, err = svc.FetchPage(ctx, realtime.Cursor{Value: postTime(3), Key: "p03"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p02", "p01"}, ids(page))
	assert.False(t, hasMore, "exactly pageSize older posts means no further page")

	page, hasMore, err = svc.FetchPage(ctx, realtime.Cursor{Value: postTime(1), Key: "p01"}, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, hasMore)
}

func TestDecodePostsNormalizesLegacyRecords(t *testing.T) {
	svc := NewFeedService(nil, logging.NewNopLogger())
	posts := svc.DecodePosts([]realtime.Child{
		{Key: "old", Value: json.RawMessage(`{"t":"legacy","a":"bia","ts":2000}`)},
		{Key: "new", Value: json.RawMessage(`{"text":"v2","authorId":"ana","timestamp":3000}`)},
		{Key: "bad", Value: json.RawMessage(`"nope"`)},
	})
	require.Len(t, posts, 2)
	assert.Equal(t, "new", posts[0].ID)
	assert.Equal(t, "legacy", posts[1].Text)
	assert.Equal(t, "bia", posts[1].AuthorID)
}

func TestPublishAndRemovePostMoveAuthorCount(t *testing.T) {
	db := newTestDB(t)
	seedProfile(t, db, edu.Profile{UID: "ana", Name: "Ana", Bio: "kept", PostCount: 2})
	svc := NewFeedService(db, logging.NewNopLogger())
	ctx := context.Background()

	post, err := svc.BuildPost(Author{UID: "ana", Name: "Ana"}, edu.NewPostInput{
		Text:        "  prova amanhã  ",
		PollTitle:   "Estudou?",
		PollOptions: []string{"sim", "não"},
	}, "p1")
	require.NoError(t, err)
	assert.Equal(t, "prova amanhã", post.Text)
	require.NotNil(t, post.Poll)
	assert.Len(t, post.Poll.Options, 2)

	require.NoError(t, svc.PublishPost(ctx, post))
	profile := readProfile(t, db, "ana")
	assert.Equal(t, 3, profile.PostCount)
	assert.Equal(t, "kept", profile.Bio)

	assert.ErrorIs(t, svc.RemovePost(ctx, "bia", "p1"), ErrForbidden)
	require.NoError(t, svc.RemovePost(ctx, "ana", "p1"))
	assert.Equal(t, 2, readProfile(t, db, "ana").PostCount)
	assert.ErrorIs(t, svc.RemovePost(ctx, "ana", "p1"), ErrNotFound)
}

func TestBuildPostRejectsInvalidInput(t *testing.T) {
	svc := NewFeedService(nil, logging.NewNopLogger())

	_, err := svc.BuildPost(Author{UID: "ana"}, edu.NewPostInput{Text: "   "}, "p")
	assert.ErrorIs(t, err, edu.ErrValidation)

	_, err = svc.BuildPost(Author{UID: "ana"}, edu.NewPostInput{Text: "x", PollOptions: []string{"a", " "}}, "p")
	assert.ErrorIs(t, err, edu.ErrValidation)

	_, err = svc.BuildPost(Author{}, edu.NewPostInput{Text: "x"}, "p")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdjustCounterClampsAndIgnoresMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, edu.Profile{UID: "ana", FollowerCount: 0})

	require.NoError(t, adjustCounter(ctx, db, ProfilePath("ana"), "followerCount", -1))
	assert.Equal(t, 0, readProfile(t, db, "ana").FollowerCount)

	require.NoError(t, adjustCounter(ctx, db, ProfilePath("ghost"), "followerCount", 1))
	snap, err := db.Get(ctx, ProfilePath("ghost"))
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestFetchPageOrdersByNormalizedTimestamp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	raw := func(id, doc string) {
		require.NoError(t, db.Set(ctx, PostPath(id), json.RawMessage(doc)))
	}
	// written before the feed registers its order
	raw("old1", `{"t":"primeiro","a":"bia","ts":1700000001000}`)
	raw("old2", `{"t":"segundo","a":"bia","ts":"1700000002000"}`)

	svc := NewFeedService(db, logging.NewNopLogger())
	raw("sec", `{"text":"em segundos","authorId":"caio","timestamp":1700000003}`)
	raw("p3", `{"text":"p3","authorId":"ana","timestamp":1700000004000}`)
	raw("p4", `{"text":"p4","authorId":"ana","createdAt":1700000005000}`)

	latest, err := svc.FetchLatest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p3"}, ids(latest))

	anchor := realtime.Cursor{Value: latest[1].Timestamp, Key: latest[1].ID}
	page, hasMore, err := svc.FetchPage(ctx, anchor, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"sec", "old2", "old1"}, ids(page))
	assert.False(t, hasMore)

	page, hasMore, err = svc.FetchPage(ctx, anchor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"sec", "old2"}, ids(page))
	assert.True(t, hasMore)

	// a partial rewrite keeps the record in place
	require.NoError(t, db.Update(ctx, PostPath("old1"), map[string]any{"bookmarkedBy": map[string]bool{"ana": true}}))
	page, _, err = svc.FetchPage(ctx, realtime.Cursor{Value: page[1].Timestamp, Key: page[1].ID}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"old1"}, ids(page))
}

func TestAdjustCounterReadsLooseNumbers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, ProfilePath("ana"), json.RawMessage(`{"uid":"ana","followerCount":3.0}`)))
	require.NoError(t, db.Set(ctx, ProfilePath("bia"), json.RawMessage(`{"uid":"bia","followerCount":"3"}`)))
	require.NoError(t, db.Set(ctx, ProfilePath("caio"), json.RawMessage(`{"uid":"caio","followerCount":{"n":3}}`)))

	require.NoError(t, adjustCounter(ctx, db, ProfilePath("ana"), "followerCount", 1))
	assert.Equal(t, 4, readProfile(t, db, "ana").FollowerCount)
	require.NoError(t, adjustCounter(ctx, db, ProfilePath("bia"), "followerCount", 1))
	assert.Equal(t, 4, readProfile(t, db, "bia").FollowerCount)

	err := adjustCounter(ctx, db, ProfilePath("caio"), "followerCount", 1)
	assert.Error(t, err)
	snap, err := db.Get(ctx, ProfilePath("caio"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":"caio","followerCount":{"n":3}}`, string(snap.Value))
}
