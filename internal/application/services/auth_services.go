package services

import (
	"context"
	"fmt"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

// RoleHinter is the session side of role verification: it names the user
// and accepts a refreshed advisory role.
type RoleHinter interface {
	UID() string
	Email() string
	RefreshRole(role edu.Role)
}

// RoleService verifies roles against the authoritative profile record.
type RoleService struct {
	db     realtime.Database
	logger *logging.ChanneledLogger
}

// NewRoleService creates a new role service
func NewRoleService(db realtime.Database, logger *logging.ChanneledLogger) *RoleService {
	return &RoleService{db: db, logger: logger}
}

// Verify always re-reads profiles/<uid>.role and refreshes the session hint.
// A user without a profile or without a role is a student.
func (s *RoleService) Verify(ctx context.Context, h RoleHinter) (edu.Role, error) {
	uid := h.UID()
	if uid == "" {
		return "", ErrForbidden
	}

	profile, ok, err := realtime.GetAs[edu.Profile](ctx, s.db, ProfilePath(uid))
	if err != nil {
		return "", fmt.Errorf("failed to verify role: %w", err)
	}

	role := edu.RoleStudent
	if ok && profile.Role != "" {
		parsed, err := edu.ParseRole(string(profile.Role))
		if err != nil {
			s.logger.Auth().Warn("Unknown stored role, treating as student", "uid", logging.MaskID(uid), "role", profile.Role)
		} else {
			role = parsed
		}
	}

	h.RefreshRole(role)
	s.logger.Auth().Debug("Role verified", "uid", logging.MaskID(uid), "role", role)
	return role, nil
}
