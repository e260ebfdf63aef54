package edu

import (
	"fmt"
	"strings"
)

// ReactionType is the reaction a user holds on a post. The zero value means
// no reaction.
type ReactionType string

const (
	ReactionNone      ReactionType = ""
	ReactionHeart     ReactionType = "heart"
	ReactionThumbsUp  ReactionType = "thumbs_up"
	ReactionLaugh     ReactionType = "laugh"
	ReactionCelebrate ReactionType = "celebrate"
	ReactionFire      ReactionType = "fire"
	ReactionHundred   ReactionType = "hundred"
)

// Reactions lists the selectable reactions.
var Reactions = []ReactionType{
	ReactionHeart, ReactionThumbsUp, ReactionLaugh, ReactionCelebrate, ReactionFire, ReactionHundred,
}

// ParseReaction accepts the selectable reactions plus the legacy "love" alias.
func ParseReaction(s string) (ReactionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "love" {
		return ReactionHeart, nil
	}
	for _, r := range Reactions {
		if string(r) == s {
			return r, nil
		}
	}
	return ReactionNone, fmt.Errorf("%w: unknown reaction %q", ErrValidation, s)
}

func canonicalReaction(s string) (ReactionType, bool) {
	r, err := ParseReaction(s)
	return r, err == nil
}

// ApplyReaction selects r for uid on p:
//   - selecting the held reaction removes it
//   - selecting a different one moves uid from the old bucket to the new one
//   - selecting with nothing held adds to that bucket
//
// ReactionNone removes whatever is held. Buckets never go below zero and
// empty buckets are dropped. likes/likedBy follow the heart bucket.
func ApplyReaction(p Post, uid string, r ReactionType) Post {
	out := p.Clone()
	if out.ReactionCounts == nil {
		out.ReactionCounts = make(map[ReactionType]int)
	}
	if out.ReactionsByUser == nil {
		out.ReactionsByUser = make(map[string]ReactionType)
	}

	prev := out.ReactionsByUser[uid]
	next := r
	if r == prev {
		next = ReactionNone
	}

	if prev != ReactionNone {
		bump(out.ReactionCounts, prev, -1)
		delete(out.ReactionsByUser, uid)
	}
	if next != ReactionNone {
		bump(out.ReactionCounts, next, 1)
		out.ReactionsByUser[uid] = next
	}

	syncLegacyLike(&out, uid, prev == ReactionHeart, next == ReactionHeart)
	out.TotalReactions = totalReactions(out.ReactionCounts)

	if len(out.ReactionCounts) == 0 {
		out.ReactionCounts = nil
	}
	if len(out.ReactionsByUser) == 0 {
		out.ReactionsByUser = nil
	}
	return out
}

// ReactionInverse returns the selection that undoes ApplyReaction(p, uid, r)
// when uid held prev before it.
func ReactionInverse(prev, r ReactionType) ReactionType {
	if prev != ReactionNone {
		return prev
	}
	return r
}

// HeldReaction returns uid's current reaction on p.
func HeldReaction(p Post, uid string) ReactionType {
	return p.ReactionsByUser[uid]
}

func bump(counts map[ReactionType]int, r ReactionType, delta int) {
	n := clampAdd(counts[r], delta)
	if n == 0 {
		delete(counts, r)
		return
	}
	counts[r] = n
}

func syncLegacyLike(p *Post, uid string, hadHeart, hasHeart bool) {
	if hadHeart == hasHeart {
		return
	}
	if p.LikedBy == nil {
		p.LikedBy = make(map[string]bool)
	}
	if hasHeart {
		if !p.LikedBy[uid] {
			p.Likes = clampAdd(p.Likes, 1)
		}
		p.LikedBy[uid] = true
	} else {
		if p.LikedBy[uid] {
			p.Likes = clampAdd(p.Likes, -1)
		}
		delete(p.LikedBy, uid)
	}
	if len(p.LikedBy) == 0 {
		p.LikedBy = nil
	}
}

func totalReactions(counts map[ReactionType]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
