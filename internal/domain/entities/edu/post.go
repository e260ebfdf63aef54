// Package edu holds the canonical EduTok records and the pure transforms
// applied to them by views and services.
package edu

import (
	"errors"
	"fmt"
	"sort"
)

// CurrentSchemaVersion is the version every normalized post carries.
const CurrentSchemaVersion = 2

var (
	ErrValidation   = errors.New("validation failed")
	ErrNoPoll       = errors.New("post has no poll")
	ErrAlreadyVoted = errors.New("already voted")
	ErrInvalidVote  = errors.New("invalid poll option")
)

// Post is the canonical feed record.
type Post struct {
	ID              string                  `json:"id"`
	AuthorID        string                  `json:"authorId"`
	AuthorName      string                  `json:"authorName"`
	AuthorPhoto     string                  `json:"authorPhoto,omitempty"`
	Text            string                  `json:"text"`
	ImageURL        string                  `json:"imageUrl,omitempty"`
	Timestamp       int64                   `json:"timestamp"`
	Likes           int                     `json:"likes"`
	LikedBy         map[string]bool         `json:"likedBy,omitempty"`
	ReactionCounts  map[ReactionType]int    `json:"reactionCounts,omitempty"`
	ReactionsByUser map[string]ReactionType `json:"reactionsByUser,omitempty"`
	TotalReactions  int                     `json:"totalReactions"`
	Retweets        int                     `json:"retweets"`
	RetweetedBy     map[string]bool         `json:"retweetedBy,omitempty"`
	BookmarkedBy    map[string]bool         `json:"bookmarkedBy,omitempty"`
	Comments        map[string]Comment      `json:"comments,omitempty"`
	CommentCount    int                     `json:"commentCount"`
	Poll            *Poll                   `json:"poll,omitempty"`
	SchemaVersion   int                     `json:"schemaVersion"`
}

type Comment struct {
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type Poll struct {
	Question   string         `json:"question"`
	Options    []PollOption   `json:"options"`
	VotedBy    map[string]int `json:"votedBy,omitempty"`
	TotalVotes int            `json:"totalVotes"`
}

// NewPostInput is what an author submits.
type NewPostInput struct {
	Text        string   `json:"text"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	PollOptions []string `json:"pollOptions,omitempty"`
	PollTitle   string   `json:"pollQuestion,omitempty"`
}

// Validate checks the submission before anything is written.
func (in NewPostInput) Validate() error {
	if in.Text == "" && in.ImageURL == "" && len(in.PollOptions) == 0 {
		return fmt.Errorf("%w: post is empty", ErrValidation)
	}
	if len([]rune(in.Text)) > 2000 {
		return fmt.Errorf("%w: text longer than 2000 characters", ErrValidation)
	}
	if n := len(in.PollOptions); n == 1 || n > 6 {
		return fmt.Errorf("%w: poll needs 2 to 6 options", ErrValidation)
	}
	return nil
}

// Less orders posts newest first, ties broken by id descending.
func Less(a, b Post) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.ID > b.ID
}

// SortPosts sorts in place, newest first.
func SortPosts(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool { return Less(posts[i], posts[j]) })
}

// Clone deep-copies the maps so transforms never alias the input.
func (p Post) Clone() Post {
	out := p
	out.LikedBy = cloneMap(p.LikedBy)
	out.ReactionCounts = cloneMap(p.ReactionCounts)
	out.ReactionsByUser = cloneMap(p.ReactionsByUser)
	out.RetweetedBy = cloneMap(p.RetweetedBy)
	out.BookmarkedBy = cloneMap(p.BookmarkedBy)
	out.Comments = cloneMap(p.Comments)
	if p.Poll != nil {
		poll := *p.Poll
		poll.Options = append([]PollOption(nil), p.Poll.Options...)
		poll.VotedBy = cloneMap(p.Poll.VotedBy)
		out.Poll = &poll
	}
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clampAdd(n, delta int) int {
	n += delta
	if n < 0 {
		return 0
	}
	return n
}

// ToggleRetweet flips uid's retweet and adjusts the counter.
func ToggleRetweet(p Post, uid string) Post {
	out := p.Clone()
	if out.RetweetedBy == nil {
		out.RetweetedBy = make(map[string]bool)
	}
	if out.RetweetedBy[uid] {
		delete(out.RetweetedBy, uid)
		out.Retweets = clampAdd(out.Retweets, -1)
	} else {
		out.RetweetedBy[uid] = true
		out.Retweets = clampAdd(out.Retweets, 1)
	}
	return out
}

// ToggleBookmark flips uid's bookmark.
func ToggleBookmark(p Post, uid string) Post {
	out := p.Clone()
	if out.BookmarkedBy == nil {
		out.BookmarkedBy = make(map[string]bool)
	}
	if out.BookmarkedBy[uid] {
		delete(out.BookmarkedBy, uid)
	} else {
		out.BookmarkedBy[uid] = true
	}
	return out
}

// Vote records uid's single vote for option.
func Vote(p Post, uid string, option int) (Post, error) {
	if p.Poll == nil {
		return p, ErrNoPoll
	}
	if option < 0 || option >= len(p.Poll.Options) {
		return p, ErrInvalidVote
	}
	if _, voted := p.Poll.VotedBy[uid]; voted {
		return p, ErrAlreadyVoted
	}
	out := p.Clone()
	if out.Poll.VotedBy == nil {
		out.Poll.VotedBy = make(map[string]int)
	}
	out.Poll.VotedBy[uid] = option
	out.Poll.Options[option].Votes++
	out.Poll.TotalVotes = sumVotes(out.Poll.Options)
	return out, nil
}

// Unvote removes uid's vote, if any.
func Unvote(p Post, uid string) Post {
	if p.Poll == nil {
		return p
	}
	option, voted := p.Poll.VotedBy[uid]
	if !voted {
		return p
	}
	out := p.Clone()
	delete(out.Poll.VotedBy, uid)
	if option >= 0 && option < len(out.Poll.Options) {
		out.Poll.Options[option].Votes = clampAdd(out.Poll.Options[option].Votes, -1)
	}
	out.Poll.TotalVotes = sumVotes(out.Poll.Options)
	return out
}

func sumVotes(options []PollOption) int {
	total := 0
	for _, o := range options {
		total += o.Votes
	}
	return total
}
