package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

// FeedService reads the Efeed and publishes or removes posts.
type FeedService struct {
	db     realtime.Database
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewFeedService creates a new feed service. Posts are ordered by their
// normalized timestamp so legacy records page like canonical ones.
func NewFeedService(db realtime.Database, logger *logging.ChanneledLogger) *FeedService {
	if db != nil {
		db.DeriveOrder(PostsPath, "timestamp", PostOrder)
	}
	return &FeedService{db: db, logger: logger, now: time.Now}
}

// PostOrder is the order value of a stored post: its timestamp in epoch
// milliseconds after normalization.
func PostOrder(key string, value json.RawMessage) (int64, bool) {
	post, err := edu.NormalizePost(key, value)
	if err != nil {
		return 0, false
	}
	return post.Timestamp, true
}

// DecodePosts normalizes every child of the posts collection, newest first.
// Records that are not objects are skipped.
func (s *FeedService) DecodePosts(children []realtime.Child) []edu.Post {
	posts := make([]edu.Post, 0, len(children))
	for _, child := range children {
		post, err := edu.NormalizePost(child.Key, child.Value)
		if err != nil {
			s.logger.Feed().Warn("Skipping malformed post", "postId", child.Key, "error", err)
			continue
		}
		posts = append(posts, post)
	}
	edu.SortPosts(posts)
	return posts
}

// DecodeSnapshot is DecodePosts over a collection snapshot.
func (s *FeedService) DecodeSnapshot(snap realtime.Snapshot) ([]edu.Post, error) {
	return s.DecodePosts(snap.Children), nil
}

// FetchLatest is a one-shot read of the newest n posts.
func (s *FeedService) FetchLatest(ctx context.Context, n int) ([]edu.Post, error) {
	children, err := s.db.Query(ctx, PostsPath, *NewestQuery(n))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest posts: %w", err)
	}
	return s.DecodePosts(children), nil
}

// FetchPage reads up to size posts strictly older than anchor. One extra
// post is requested so hasMore is exact; the extra post is not returned.
func (s *FeedService) FetchPage(ctx context.Context, anchor realtime.Cursor, size int) ([]edu.Post, bool, error) {
	if size <= 0 {
		return nil, false, fmt.Errorf("%w: page size must be positive", edu.ErrValidation)
	}
	children, err := s.db.Query(ctx, PostsPath, realtime.Query{
		OrderByChild: "timestamp",
		EndBefore:    &anchor,
		LimitToLast:  size + 1,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch page: %w", err)
	}

	hasMore := len(children) > size
	if hasMore {
		// ascending order: the extra one is the oldest
		children = children[1:]
	}
	return s.DecodePosts(children), hasMore, nil
}

// Author is who a new post or message is attributed to.
type Author struct {
	UID   string
	Name  string
	Photo string
}

// BuildPost validates in and returns the record that PublishPost will write.
func (s *FeedService) BuildPost(author Author, in edu.NewPostInput, id string) (edu.Post, error) {
	if author.UID == "" {
		return edu.Post{}, ErrForbidden
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := in.Validate(); err != nil {
		return edu.Post{}, err
	}

	post := edu.Post{
		ID:            id,
		AuthorID:      author.UID,
		AuthorName:    author.Name,
		AuthorPhoto:   author.Photo,
		Text:          in.Text,
		ImageURL:      in.ImageURL,
		Timestamp:     s.now().UnixMilli(),
		SchemaVersion: edu.CurrentSchemaVersion,
	}
	if len(in.PollOptions) > 0 {
		poll := &edu.Poll{Question: strings.TrimSpace(in.PollTitle)}
		for _, option := range in.PollOptions {
			text := strings.TrimSpace(option)
			if text == "" {
				return edu.Post{}, fmt.Errorf("%w: poll option is empty", edu.ErrValidation)
			}
			poll.Options = append(poll.Options, edu.PollOption{Text: text})
		}
		post.Poll = poll
	}
	return post, nil
}

// PublishPost writes the post and bumps the author's post count.
func (s *FeedService) PublishPost(ctx context.Context, post edu.Post) error {
	if err := s.db.Set(ctx, PostPath(post.ID), post); err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}
	if err := adjustCounter(ctx, s.db, ProfilePath(post.AuthorID), "postCount", 1); err != nil {
		return fmt.Errorf("post published but post count not updated: %w", err)
	}
	s.logger.Feed().Info("Post published", "postId", post.ID, "authorId", logging.MaskID(post.AuthorID))
	return nil
}

// RemovePost deletes uid's own post and decrements the post count.
func (s *FeedService) RemovePost(ctx context.Context, uid, postID string) error {
	snap, err := s.db.Get(ctx, PostPath(postID))
	if err != nil {
		return fmt.Errorf("failed to read post: %w", err)
	}
	if !snap.Exists {
		return ErrNotFound
	}
	post, err := edu.NormalizePost(postID, snap.Value)
	if err != nil {
		return err
	}
	if post.AuthorID != uid {
		return ErrForbidden
	}

	if err := s.db.Delete(ctx, PostPath(postID)); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if err := adjustCounter(ctx, s.db, ProfilePath(uid), "postCount", -1); err != nil {
		return fmt.Errorf("post deleted but post count not updated: %w", err)
	}
	s.logger.Feed().Info("Post deleted", "postId", postID, "authorId", logging.MaskID(uid))
	return nil
}

// adjustCounter adds delta to a numeric field of the object at path inside a
// transaction, clamping at zero. Other fields are preserved. A missing
// object is left alone.
func adjustCounter(ctx context.Context, db realtime.Database, path, field string, delta int) error {
	_, err := db.Transaction(ctx, path, func(current json.RawMessage) (any, error) {
		if len(current) == 0 {
			return nil, realtime.ErrAbort
		}
		doc := make(map[string]json.RawMessage)
		if err := json.Unmarshal(current, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		var n int
		if raw, ok := doc[field]; ok {
			count, err := edu.DecodeCount(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s of %s: %w", field, path, err)
			}
			n = count
		}
		n += delta
		if n < 0 {
			n = 0
		}
		doc[field] = json.RawMessage(strconv.Itoa(n))
		return doc, nil
	})
	if errors.Is(err, realtime.ErrAbort) {
		return nil
	}
	return err
}
