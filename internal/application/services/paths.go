// Package services implements the remote-side EduTok operations: reads,
// writes and transactions against the realtime store.
package services

import (
	"errors"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrQRExpired           = errors.New("qr session expired")
	ErrQRInvalidTransition = errors.New("qr session cannot make this transition")
	ErrQRSecretMismatch    = errors.New("qr secret does not match")
	ErrNotConfigured       = errors.New("feature is not configured")
)

// Collections in the realtime store.
const (
	PostsPath         = "posts"
	ProfilesPath      = "profiles"
	FollowsPath       = "follows"
	MessagesPath      = "messages"
	GradesPath        = "grades"
	ConversationsPath = "conversations"
	ClassesPath       = "classes"
	VideosPath        = "videos"
	EventsPath        = "events"
	QRSessionsPath    = "qrSessions"
	NotificationsPath = "notifications"
)

func PostPath(id string) string           { return realtime.Join(PostsPath, id) }
func ProfilePath(uid string) string       { return realtime.Join(ProfilesPath, uid) }
func FollowingPath(uid string) string     { return realtime.Join(FollowsPath, uid) }
func RoomPath(roomID string) string       { return realtime.Join(MessagesPath, roomID) }
func StudentGradesPath(uid string) string { return realtime.Join(GradesPath, uid) }
func ConversationPath(id string) string   { return realtime.Join(ConversationsPath, id) }
func ClassPath(id string) string          { return realtime.Join(ClassesPath, id) }
func QRSessionPath(id string) string      { return realtime.Join(QRSessionsPath, id) }

// NewestQuery selects the newest n children of a collection by timestamp.
func NewestQuery(n int) *realtime.Query {
	return &realtime.Query{OrderByChild: "timestamp", LimitToLast: n}
}

// decodeChildren decodes every child into T, skipping (and reporting) bad
// ones. withKey, if set, receives the child key so records can fill in an
// id they were stored without.
func decodeChildren[T any](children []realtime.Child, withKey func(*T, string), onError func(key string, err error)) []T {
	out := make([]T, 0, len(children))
	for _, child := range children {
		var v T
		if err := child.Decode(&v); err != nil {
			if onError != nil {
				onError(child.Key, err)
			}
			continue
		}
		if withKey != nil {
			withKey(&v, child.Key)
		}
		out = append(out, v)
	}
	return out
}

func classKey(c *edu.Class, key string) {
	if c.ID == "" {
		c.ID = key
	}
}

func conversationKey(c *edu.Conversation, key string) {
	if c.ID == "" {
		c.ID = key
	}
}
