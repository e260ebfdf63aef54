package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

func TestReactFollowsStateMachine(t *testing.T) {
	db := newTestDB(t)
	seedPosts(t, db, 1)
	svc := NewSocialService(db, logging.NewNopLogger())
	ctx := context.Background()

	post, err := svc.React(ctx, "p01", "bia", edu.ReactionHeart)
	require.NoError(t, err)
	assert.Equal(t, 1, post.ReactionCounts[edu.ReactionHeart])
	assert.Equal(t, 1, post.Likes)
	assert.True(t, post.LikedBy["bia"])

	post, err = svc.React(ctx, "p01", "bia", edu.ReactionFire)
	require.NoError(t, err)
	assert.Equal(t, map[edu.ReactionType]int{edu.ReactionFire: 1}, post.ReactionCounts)
	assert.Equal(t, 0, post.Likes)
	assert.Equal(t, 1, post.TotalReactions)

	post, err = svc.React(ctx, "p01", "bia", edu.ReactionFire)
	require.NoError(t, err)
	assert.Nil(t, post.ReactionCounts)
	assert.Equal(t, 0, post.TotalReactions)

	_, err = svc.React(ctx, "missing", "bia", edu.ReactionFire)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentReactionsAllLand(t *testing.T) {
	db := newTestDB(t)
	seedPosts(t, db, 1)
	svc := NewSocialService(db, logging.NewNopLogger())

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	var wg sync.WaitGroup
	for _, uid := range users {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := svc.React(context.Background(), "p01", uid, edu.ReactionLaugh)
			assert.NoError(t, err)
		}(uid)
	}
	wg.Wait()

	snap, err := db.Get(context.Background(), PostPath("p01"))
	require.NoError(t, err)
	post, err := edu.NormalizePost("p01", snap.Value)
	require.NoError(t, err)
	assert.Equal(t, len(users), post.ReactionCounts[edu.ReactionLaugh])
	assert.Len(t, post.ReactionsByUser, len(users))
}

func TestReactRewritesLegacyPost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, PostPath("old"), json.RawMessage(`{"t":"oi","a":"ana","ts":1700000000000,"l":1,"lb":{"caio":true}}`)))
	svc := NewSocialService(db, logging.NewNopLogger())

	post, err := svc.React(ctx, "old", "bia", edu.ReactionHeart)
	require.NoError(t, err)
	assert.Equal(t, 2, post.Likes)
	assert.Equal(t, 2, post.ReactionCounts[edu.ReactionHeart])

	snap, err := db.Get(ctx, PostPath("old"))
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(snap.Value, &stored))
	assert.Equal(t, "oi", stored["text"])
	assert.NotContains(t, stored, "t")
}

func TestVoteOncePerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := edu.Post{ID: "poll", AuthorID: "ana", Timestamp: 1, Poll: &edu.Poll{
		Question: "?",
		Options:  []edu.PollOption{{Text: "a"}, {Text: "b"}},
	}}
	require.NoError(t, db.Set(ctx, PostPath("poll"), post))
	svc := NewSocialService(db, logging.NewNopLogger())

	voted, err := svc.Vote(ctx, "poll", "bia", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, voted.Poll.Options[1].Votes)

	_, err = svc.Vote(ctx, "poll", "bia", 0)
	assert.ErrorIs(t, err, edu.ErrAlreadyVoted)
}

func TestToggleRetweetAndBookmark(t *testing.T) {
	db := newTestDB(t)
	seedPosts(t, db, 1)
	svc := NewSocialService(db, logging.NewNopLogger())
	ctx := context.Background()

	post, err := svc.ToggleRetweet(ctx, "p01", "bia")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Retweets)

	post, err = svc.ToggleBookmark(ctx, "p01", "bia")
	require.NoError(t, err)
	assert.True(t, post.BookmarkedBy["bia"])

	post, err = svc.ToggleRetweet(ctx, "p01", "bia")
	require.NoError(t, err)
	assert.Equal(t, 0, post.Retweets)

	stored, ok, err := realtime.GetAs[edu.Post](ctx, db, PostPath("p01"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, stored.Retweets)
	assert.Empty(t, stored.RetweetedBy)
	assert.True(t, stored.BookmarkedBy["bia"])
}

func TestFollowMovesBothCounters(t *testing.T) {
	db := newTestDB(t)
	seedProfile(t, db, edu.Profile{UID: "ana"})
	seedProfile(t, db, edu.Profile{UID: "bia", FollowerCount: 4})
	svc := NewSocialService(db, logging.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, "ana", "bia", true))
	assert.Equal(t, 1, readProfile(t, db, "ana").FollowingCount)
	assert.Equal(t, 5, readProfile(t, db, "bia").FollowerCount)

	assert.ErrorIs(t, svc.Follow(ctx, "ana", "bia", true), ErrFollowUnchanged)
	assert.Equal(t, 5, readProfile(t, db, "bia").FollowerCount)

	require.NoError(t, svc.Follow(ctx, "ana", "bia", false))
	assert.Equal(t, 0, readProfile(t, db, "ana").FollowingCount)
	assert.Equal(t, 4, readProfile(t, db, "bia").FollowerCount)

	assert.ErrorIs(t, svc.Follow(ctx, "ana", "ana", true), edu.ErrValidation)
}
