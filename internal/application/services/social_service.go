package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

// SocialService performs the remote half of engagement actions. Counters
// shared between clients go through transactions; per-user flags use
// read-then-write updates.
type SocialService struct {
	db     realtime.Database
	logger *logging.ChanneledLogger
}

// NewSocialService creates a new social service
func NewSocialService(db realtime.Database, logger *logging.ChanneledLogger) *SocialService {
	return &SocialService{db: db, logger: logger}
}

// transactPost runs fn on the normalized post inside a transaction. Legacy
// records are rewritten in the canonical shape.
func (s *SocialService) transactPost(ctx context.Context, postID string, fn func(edu.Post) (edu.Post, error)) (edu.Post, error) {
	var result edu.Post
	_, err := s.db.Transaction(ctx, PostPath(postID), func(current json.RawMessage) (any, error) {
		if len(current) == 0 {
			return nil, ErrNotFound
		}
		post, err := edu.NormalizePost(postID, current)
		if err != nil {
			return nil, err
		}
		next, err := fn(post)
		if err != nil {
			return nil, err
		}
		result = next
		return next, nil
	})
	if err != nil {
		return edu.Post{}, err
	}
	return result, nil
}

// React applies the reaction state machine for uid against the stored post.
func (s *SocialService) React(ctx context.Context, postID, uid string, r edu.ReactionType) (edu.Post, error) {
	post, err := s.transactPost(ctx, postID, func(p edu.Post) (edu.Post, error) {
		return edu.ApplyReaction(p, uid, r), nil
	})
	if err != nil {
		return edu.Post{}, fmt.Errorf("failed to react to %s: %w", postID, err)
	}
	s.logger.Feed().Debug("Reaction applied", "postId", postID, "reaction", r, "total", post.TotalReactions)
	return post, nil
}

// Vote records one poll vote per user.
func (s *SocialService) Vote(ctx context.Context, postID, uid string, option int) (edu.Post, error) {
	post, err := s.transactPost(ctx, postID, func(p edu.Post) (edu.Post, error) {
		return edu.Vote(p, uid, option)
	})
	if err != nil {
		return edu.Post{}, fmt.Errorf("failed to vote on %s: %w", postID, err)
	}
	return post, nil
}

// ToggleRetweet flips uid's retweet with a read-then-write update.
func (s *SocialService) ToggleRetweet(ctx context.Context, postID, uid string) (edu.Post, error) {
	post, err := s.readPost(ctx, postID)
	if err != nil {
		return edu.Post{}, err
	}
	next := edu.ToggleRetweet(post, uid)
	err = s.db.Update(ctx, PostPath(postID), map[string]any{
		"retweets":    next.Retweets,
		"retweetedBy": nilIfEmpty(next.RetweetedBy),
		"rt":          nil,
		"rtb":         nil,
	})
	if err != nil {
		return edu.Post{}, fmt.Errorf("failed to retweet %s: %w", postID, err)
	}
	return next, nil
}

// ToggleBookmark flips uid's bookmark with a read-then-write update.
func (s *SocialService) ToggleBookmark(ctx context.Context, postID, uid string) (edu.Post, error) {
	post, err := s.readPost(ctx, postID)
	if err != nil {
		return edu.Post{}, err
	}
	next := edu.ToggleBookmark(post, uid)
	if err := s.db.Update(ctx, PostPath(postID), map[string]any{"bookmarkedBy": nilIfEmpty(next.BookmarkedBy)}); err != nil {
		return edu.Post{}, fmt.Errorf("failed to bookmark %s: %w", postID, err)
	}
	return next, nil
}

func (s *SocialService) readPost(ctx context.Context, postID string) (edu.Post, error) {
	snap, err := s.db.Get(ctx, PostPath(postID))
	if err != nil {
		return edu.Post{}, fmt.Errorf("failed to read post %s: %w", postID, err)
	}
	if !snap.Exists || len(snap.Value) == 0 {
		return edu.Post{}, ErrNotFound
	}
	return edu.NormalizePost(postID, snap.Value)
}

func nilIfEmpty(m map[string]bool) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// ErrFollowUnchanged is returned when the edge already had the requested state.
var ErrFollowUnchanged = errors.New("follow state unchanged")

// Follow sets or clears the follower -> followed edge, then moves both
// profile counters in their own transactions.
func (s *SocialService) Follow(ctx context.Context, followerUID, followedUID string, follow bool) error {
	if followerUID == "" || followedUID == "" || followerUID == followedUID {
		return fmt.Errorf("%w: cannot follow yourself", edu.ErrValidation)
	}

	_, err := realtime.Transact(ctx, s.db, FollowingPath(followerUID), func(edges *edu.Follows, _ bool) error {
		if *edges == nil {
			*edges = edu.Follows{}
		}
		if (*edges)[followedUID] == follow {
			return ErrFollowUnchanged
		}
		if follow {
			(*edges)[followedUID] = true
		} else {
			delete(*edges, followedUID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	delta := 1
	if !follow {
		delta = -1
	}
	if err := adjustCounter(ctx, s.db, ProfilePath(followerUID), "followingCount", delta); err != nil {
		return fmt.Errorf("failed to update following count: %w", err)
	}
	if err := adjustCounter(ctx, s.db, ProfilePath(followedUID), "followerCount", delta); err != nil {
		return fmt.Errorf("failed to update follower count: %w", err)
	}
	s.logger.Feed().Debug("Follow edge updated", "follower", logging.MaskID(followerUID), "followed", logging.MaskID(followedUID), "follow", follow)
	return nil
}
