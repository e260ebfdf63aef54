package edu

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePostCanonical(t *testing.T) {
	raw := json.RawMessage(`{
		"text": "Prova de matemática amanhã",
		"authorId": "u1",
		"authorName": "Ana",
		"timestamp": 1700000000000,
		"reactionCounts": {"heart": 2, "fire": 1},
		"reactionsByUser": {"u2": "heart", "u3": "heart", "u4": "fire"},
		"likes": 2,
		"likedBy": {"u2": true, "u3": true},
		"comments": {"c1": {"authorId": "u2", "text": "ok", "timestamp": 1700000001000}}
	}`)

	p, err := NormalizePost("p1", raw)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Prova de matemática amanhã", p.Text)
	assert.Equal(t, int64(1700000000000), p.Timestamp)
	assert.Equal(t, 3, p.TotalReactions)
	assert.Equal(t, 1, p.CommentCount)
	assert.Equal(t, CurrentSchemaVersion, p.SchemaVersion)
}

func TestNormalizePostLegacyFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, p Post)
	}{
		{
			name: "abbreviated v1 keys",
			raw:  `{"t":"oi","a":"u9","n":"Bia","ts":1700000000000,"l":1,"lb":{"u1":true},"rt":2,"rtb":{"u5":true,"u6":true},"img":"https://x/y.webp"}`,
			check: func(t *testing.T, p Post) {
				assert.Equal(t, "oi", p.Text)
				assert.Equal(t, "u9", p.AuthorID)
				assert.Equal(t, "Bia", p.AuthorName)
				assert.Equal(t, 1, p.Likes)
				assert.Equal(t, 2, p.Retweets)
				assert.Len(t, p.RetweetedBy, 2)
				assert.Equal(t, "https://x/y.webp", p.ImageURL)
				assert.Equal(t, ReactionHeart, p.ReactionsByUser["u1"])
				assert.Equal(t, 1, p.ReactionCounts[ReactionHeart])
				assert.Equal(t, 1, p.TotalReactions)
			},
		},
		{
			name: "alternate v2 names",
			raw:  `{"content":"olá","userId":"u3","createdAt":"2024-03-01T12:00:00Z"}`,
			check: func(t *testing.T, p Post) {
				assert.Equal(t, "olá", p.Text)
				assert.Equal(t, "u3", p.AuthorID)
				assert.Equal(t, int64(1709294400000), p.Timestamp)
			},
		},
		{
			name: "seconds timestamp",
			raw:  `{"text":"a","timestamp":1700000000}`,
			check: func(t *testing.T, p Post) {
				assert.Equal(t, int64(1700000000000), p.Timestamp)
			},
		},
		{
			name: "love alias merges into heart",
			raw:  `{"rc":{"love":1,"heart":1,"bogus":4},"rbu":{"u1":"love","u2":"heart","u3":"bogus"}}`,
			check: func(t *testing.T, p Post) {
				assert.Equal(t, 2, p.ReactionCounts[ReactionHeart])
				assert.Len(t, p.ReactionCounts, 1)
				assert.Equal(t, ReactionHeart, p.ReactionsByUser["u1"])
				assert.NotContains(t, p.ReactionsByUser, "u3")
				assert.Equal(t, 2, p.TotalReactions)
			},
		},
		{
			name: "likedBy as array and canonical wins over alias",
			raw:  `{"text":"canonical","t":"alias","likedBy":["u1","u2"]}`,
			check: func(t *testing.T, p Post) {
				assert.Equal(t, "canonical", p.Text)
				assert.Equal(t, 2, p.Likes)
				assert.Len(t, p.LikedBy, 2)
			},
		},
		{
			name: "poll totals recomputed",
			raw:  `{"pl":{"question":"Melhor matéria?","options":[{"text":"Mat","votes":2},{"text":"Hist","votes":-1}],"totalVotes":99}}`,
			check: func(t *testing.T, p Post) {
				require.NotNil(t, p.Poll)
				assert.Equal(t, 2, p.Poll.TotalVotes)
				assert.Equal(t, 0, p.Poll.Options[1].Votes)
			},
		},
		{
			name: "empty record",
			raw:  `{}`,
			check: func(t *testing.T, p Post) {
				assert.Equal(t, "p", p.ID)
				assert.Zero(t, p.TotalReactions)
				assert.Nil(t, p.Poll)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NormalizePost("p", json.RawMessage(tt.raw))
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestNormalizePostRejectsNonObject(t *testing.T) {
	_, err := NormalizePost("p", json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestNormalizeIsIdempotentOnCanonicalRecords(t *testing.T) {
	p, err := NormalizePost("p1", json.RawMessage(`{"t":"x","a":"u1","ts":1700000000000,"lb":{"u2":true},"rc":{"heart":1,"fire":2},"rbu":{"u2":"heart","u3":"fire","u4":"fire"}}`))
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	again, err := NormalizePost("p1", data)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestApplyReactionScenario(t *testing.T) {
	p := Post{
		ID:              "p1",
		ReactionCounts:  map[ReactionType]int{ReactionHeart: 2},
		ReactionsByUser: map[string]ReactionType{"u1": ReactionHeart, "u2": ReactionHeart},
		TotalReactions:  2,
		Likes:           2,
		LikedBy:         map[string]bool{"u1": true, "u2": true},
	}

	next := ApplyReaction(p, "u1", ReactionFire)
	assert.Equal(t, map[ReactionType]int{ReactionHeart: 1, ReactionFire: 1}, next.ReactionCounts)
	assert.Equal(t, 2, next.TotalReactions)
	assert.Equal(t, ReactionFire, next.ReactionsByUser["u1"])
	assert.Equal(t, 1, next.Likes)
	assert.False(t, next.LikedBy["u1"])

	// input untouched
	assert.Equal(t, 2, p.ReactionCounts[ReactionHeart])

	// same reaction again removes it
	removed := ApplyReaction(next, "u1", ReactionFire)
	assert.Equal(t, map[ReactionType]int{ReactionHeart: 1}, removed.ReactionCounts)
	assert.NotContains(t, removed.ReactionsByUser, "u1")
	assert.Equal(t, 1, removed.TotalReactions)
}

func TestApplyReactionFromNoneAndHeartSync(t *testing.T) {
	p := ApplyReaction(Post{ID: "p"}, "u1", ReactionHeart)
	assert.Equal(t, 1, p.Likes)
	assert.True(t, p.LikedBy["u1"])
	assert.Equal(t, 1, p.TotalReactions)

	p = ApplyReaction(p, "u1", ReactionNone)
	assert.Zero(t, p.Likes)
	assert.Nil(t, p.LikedBy)
	assert.Nil(t, p.ReactionCounts)
	assert.Zero(t, p.TotalReactions)
}

func TestApplyReactionClampsAtZero(t *testing.T) {
	// counter already drifted to zero while the user still holds the reaction
	p := Post{ReactionsByUser: map[string]ReactionType{"u1": ReactionLaugh}}
	p = ApplyReaction(p, "u1", ReactionLaugh)
	assert.Empty(t, p.ReactionCounts)
	assert.Zero(t, p.TotalReactions)
}

func TestReactionInverseRestoresState(t *testing.T) {
	base := ApplyReaction(ApplyReaction(Post{ID: "p"}, "u2", ReactionHeart), "u1", ReactionLaugh)
	for _, prev := range append([]ReactionType{ReactionNone}, Reactions...) {
		for _, r := range Reactions {
			start := base
			if prev != ReactionNone {
				start = ApplyReaction(ApplyReaction(base, "u1", ReactionNone), "u1", prev)
			} else {
				start = ApplyReaction(base, "u1", ReactionNone)
			}
			changed := ApplyReaction(start, "u1", r)
			restored := ApplyReaction(changed, "u1", ReactionInverse(prev, r))
			assert.Equal(t, start, restored, "prev=%s r=%s", prev, r)
		}
	}
}

func TestReactionInvariantsUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	choices := append([]ReactionType{ReactionNone}, Reactions...)

	p := Post{ID: "p"}
	for i := 0; i < 2000; i++ {
		p = ApplyReaction(p, users[rng.Intn(len(users))], choices[rng.Intn(len(choices))])

		counts := make(map[ReactionType]int)
		for _, r := range p.ReactionsByUser {
			counts[r]++
		}
		if len(counts) == 0 {
			counts = nil
		}
		require.Equal(t, counts, p.ReactionCounts, "step %d", i)
		require.Equal(t, len(p.ReactionsByUser), p.TotalReactions)
		for r, n := range p.ReactionCounts {
			require.Positive(t, n, "bucket %s", r)
		}
		hearts := 0
		for uid, r := range p.ReactionsByUser {
			require.Equal(t, r == ReactionHeart, p.LikedBy[uid])
			if r == ReactionHeart {
				hearts++
			}
		}
		require.Equal(t, hearts, p.Likes)
	}
}

func TestParseReaction(t *testing.T) {
	r, err := ParseReaction("LOVE")
	require.NoError(t, err)
	assert.Equal(t, ReactionHeart, r)

	_, err = ParseReaction("angry")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToggleRetweetAndBookmark(t *testing.T) {
	p := ToggleRetweet(Post{}, "u1")
	assert.Equal(t, 1, p.Retweets)
	p = ToggleRetweet(p, "u1")
	assert.Zero(t, p.Retweets)
	assert.Empty(t, p.RetweetedBy)

	p = ToggleBookmark(p, "u1")
	assert.True(t, p.BookmarkedBy["u1"])
	assert.False(t, ToggleBookmark(p, "u1").BookmarkedBy["u1"])
}

func TestVote(t *testing.T) {
	p := Post{Poll: &Poll{Question: "?", Options: []PollOption{{Text: "a"}, {Text: "b"}}}}

	voted, err := Vote(p, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, voted.Poll.Options[1].Votes)
	assert.Equal(t, 1, voted.Poll.TotalVotes)
	assert.Zero(t, p.Poll.TotalVotes, "input untouched")

	_, err = Vote(voted, "u1", 0)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	_, err = Vote(p, "u1", 5)
	assert.ErrorIs(t, err, ErrInvalidVote)
	_, err = Vote(Post{}, "u1", 0)
	assert.ErrorIs(t, err, ErrNoPoll)

	undone := Unvote(voted, "u1")
	assert.Zero(t, undone.Poll.TotalVotes)
	assert.NotContains(t, undone.Poll.VotedBy, "u1")
}

func TestSortPosts(t *testing.T) {
	posts := []Post{{ID: "a", Timestamp: 1}, {ID: "c", Timestamp: 2}, {ID: "b", Timestamp: 2}}
	SortPosts(posts)
	assert.Equal(t, "c", posts[0].ID)
	assert.Equal(t, "b", posts[1].ID)
	assert.Equal(t, "a", posts[2].ID)
}

func TestNewPostInputValidate(t *testing.T) {
	assert.NoError(t, NewPostInput{Text: "oi"}.Validate())
	assert.ErrorIs(t, NewPostInput{}.Validate(), ErrValidation)
	assert.ErrorIs(t, NewPostInput{Text: "x", PollOptions: []string{"só uma"}}.Validate(), ErrValidation)
}
