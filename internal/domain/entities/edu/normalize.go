package edu

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names per schema, canonical first. Version 1 stored posts with
// single-letter keys; early version 2 writers used content/createdAt/userId.
var postFieldAliases = map[string][]string{
	"text":            {"text", "content", "t"},
	"authorId":        {"authorId", "userId", "a"},
	"authorName":      {"authorName", "userName", "n"},
	"authorPhoto":     {"authorPhoto", "photoURL", "userPhoto"},
	"timestamp":       {"timestamp", "createdAt", "ts"},
	"likes":           {"likes", "l"},
	"likedBy":         {"likedBy", "lb"},
	"reactionCounts":  {"reactionCounts", "rc"},
	"reactionsByUser": {"reactionsByUser", "rbu"},
	"comments":        {"comments", "c"},
	"retweets":        {"retweets", "rt"},
	"retweetedBy":     {"retweetedBy", "rtb"},
	"bookmarkedBy":    {"bookmarkedBy"},
	"imageUrl":        {"imageUrl", "image", "img"},
	"poll":            {"poll", "pl"},
}

type rawRecord map[string]json.RawMessage

func (r rawRecord) pick(field string) (json.RawMessage, bool) {
	for _, alias := range postFieldAliases[field] {
		if v, ok := r[alias]; ok && len(v) > 0 && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

// NormalizePost maps any stored post shape to the canonical record. It never
// mutates raw and fails only when raw is not a JSON object.
func NormalizePost(id string, raw json.RawMessage) (Post, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Post{}, fmt.Errorf("post %s is not an object: %w", id, err)
	}

	p := Post{ID: id, SchemaVersion: CurrentSchemaVersion}
	p.Text = rec.str("text")
	p.AuthorID = rec.str("authorId")
	p.AuthorName = rec.str("authorName")
	p.AuthorPhoto = rec.str("authorPhoto")
	p.ImageURL = rec.str("imageUrl")
	p.Timestamp = rec.millis("timestamp")
	p.Retweets = rec.count("retweets")
	p.RetweetedBy = rec.uidSet("retweetedBy")
	p.BookmarkedBy = rec.uidSet("bookmarkedBy")
	p.LikedBy = rec.uidSet("likedBy")
	p.Comments = rec.comments()
	p.CommentCount = len(p.Comments)
	p.Poll = rec.poll()

	p.ReactionCounts = rec.reactionCounts()
	p.ReactionsByUser = rec.reactionsByUser()

	// legacy posts only carry likes: treat each like as a heart
	if len(p.ReactionsByUser) == 0 && len(p.LikedBy) > 0 {
		p.ReactionsByUser = make(map[string]ReactionType, len(p.LikedBy))
		for uid := range p.LikedBy {
			p.ReactionsByUser[uid] = ReactionHeart
		}
		if len(p.ReactionCounts) == 0 {
			p.ReactionCounts = map[ReactionType]int{ReactionHeart: len(p.LikedBy)}
		}
	}
	p.TotalReactions = totalReactions(p.ReactionCounts)

	if likes, ok := rec.pick("likes"); ok {
		p.Likes = clampAdd(parseInt(likes), 0)
	} else {
		p.Likes = len(p.LikedBy)
	}
	return p, nil
}

func (r rawRecord) str(field string) string {
	v, ok := r.pick(field)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

func (r rawRecord) count(field string) int {
	v, ok := r.pick(field)
	if !ok {
		return 0
	}
	return clampAdd(parseInt(v), 0)
}

// millis accepts epoch milliseconds, epoch seconds, numeric strings and RFC 3339.
func (r rawRecord) millis(field string) int64 {
	v, ok := r.pick(field)
	if !ok {
		return 0
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return toMillis(int64(n))
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return toMillis(i)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	return 0
}

func toMillis(n int64) int64 {
	// anything below year 2001 in millis is taken as seconds
	if n > 0 && n < 1_000_000_000_000 {
		return n * 1000
	}
	return n
}

func parseInt(v json.RawMessage) int {
	n, _ := DecodeCount(v)
	return n
}

// DecodeCount reads a stored counter written as a number (integral or not),
// a numeric string or null. Anything else is an error.
func DecodeCount(v json.RawMessage) (int, error) {
	var n *float64
	if err := json.Unmarshal(v, &n); err == nil {
		if n == nil {
			return 0, nil
		}
		return int(*n), nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(f), nil
		}
	}
	return 0, fmt.Errorf("counter %s is not a number", string(v))
}

// uidSet accepts {uid: true} maps and [uid, ...] arrays.
func (r rawRecord) uidSet(field string) map[string]bool {
	v, ok := r.pick(field)
	if !ok {
		return nil
	}
	out := make(map[string]bool)
	var asMap map[string]bool
	if err := json.Unmarshal(v, &asMap); err == nil {
		for uid, on := range asMap {
			if on && uid != "" {
				out[uid] = true
			}
		}
	} else {
		var asList []string
		if err := json.Unmarshal(v, &asList); err == nil {
			for _, uid := range asList {
				if uid != "" {
					out[uid] = true
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r rawRecord) reactionCounts() map[ReactionType]int {
	v, ok := r.pick("reactionCounts")
	if !ok {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(v, &raw); err != nil {
		return nil
	}
	out := make(map[ReactionType]int)
	for name, n := range raw {
		reaction, ok := canonicalReaction(name)
		if !ok {
			continue
		}
		if count := parseInt(n); count > 0 {
			out[reaction] += count
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r rawRecord) reactionsByUser() map[string]ReactionType {
	v, ok := r.pick("reactionsByUser")
	if !ok {
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal(v, &raw); err != nil {
		return nil
	}
	out := make(map[string]ReactionType)
	for uid, name := range raw {
		if reaction, ok := canonicalReaction(name); ok && uid != "" {
			out[uid] = reaction
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r rawRecord) comments() map[string]Comment {
	v, ok := r.pick("comments")
	if !ok {
		return nil
	}
	var raw map[string]rawRecord
	if err := json.Unmarshal(v, &raw); err != nil {
		return nil
	}
	out := make(map[string]Comment, len(raw))
	for id, c := range raw {
		out[id] = Comment{
			AuthorID:   c.str("authorId"),
			AuthorName: c.str("authorName"),
			Text:       c.str("text"),
			Timestamp:  c.millis("timestamp"),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r rawRecord) poll() *Poll {
	v, ok := r.pick("poll")
	if !ok {
		return nil
	}
	var poll Poll
	if err := json.Unmarshal(v, &poll); err != nil || len(poll.Options) == 0 {
		return nil
	}
	for i := range poll.Options {
		poll.Options[i].Votes = clampAdd(poll.Options[i].Votes, 0)
	}
	poll.TotalVotes = sumVotes(poll.Options)
	return &poll
}
