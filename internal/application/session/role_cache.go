package session

import (
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
)

// RoleCache is the advisory role hint kept for a session. It is only used
// to render the UI early; authorization always re-reads the stored role.
type RoleCache struct {
	Role     edu.Role  `json:"role"`
	UID      string    `json:"uid"`
	Email    string    `json:"email,omitempty"`
	CachedAt time.Time `json:"cachedAt"`
}

// Fresh reports whether the hint is younger than ttl at now.
func (rc RoleCache) Fresh(now time.Time, ttl time.Duration) bool {
	return !rc.CachedAt.IsZero() && now.Sub(rc.CachedAt) < ttl
}
