package edu

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the verified school role of a user.
type Role string

const (
	RoleStudent     Role = "student"
	RoleProfessor   Role = "professor"
	RoleSecretariat Role = "secretariat"
	RoleAdmin       Role = "admin"
)

// ParseRole accepts the stored role names, including the Portuguese ones
// older school imports used.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student", "aluno":
		return RoleStudent, nil
	case "professor", "teacher":
		return RoleProfessor, nil
	case "secretariat", "secretaria":
		return RoleSecretariat, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

func (r Role) CanGrade() bool  { return r == RoleProfessor || r == RoleAdmin }
func (r Role) CanNotify() bool { return r == RoleSecretariat || r == RoleAdmin }
func (r Role) IsStaff() bool   { return r != RoleStudent && r != "" }

// Profile is the public directory record at profiles/<uid>.
type Profile struct {
	UID            string   `json:"uid"`
	Name           string   `json:"name"`
	Email          string   `json:"email,omitempty"`
	Photo          string   `json:"photo,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Role           Role     `json:"role"`
	SchoolID       string   `json:"schoolId,omitempty"`
	ClassIDs       []string `json:"classIds,omitempty"`
	FollowerCount  int      `json:"followerCount"`
	FollowingCount int      `json:"followingCount"`
	PostCount      int      `json:"postCount"`
}

// ApplyFollow adjusts both sides of a follow edge. delta is +1 or -1.
func ApplyFollow(profiles []Profile, followerUID, followedUID string, delta int) []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	for i := range out {
		switch out[i].UID {
		case followerUID:
			out[i].FollowingCount = clampAdd(out[i].FollowingCount, delta)
		case followedUID:
			out[i].FollowerCount = clampAdd(out[i].FollowerCount, delta)
		}
	}
	return out
}

// SortProfiles orders the directory by name, then uid.
func SortProfiles(profiles []Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := strings.ToLower(profiles[i].Name), strings.ToLower(profiles[j].Name)
		if a != b {
			return a < b
		}
		return profiles[i].UID < profiles[j].UID
	})
}

// Follows is the follows/<uid> map of followed uids.
type Follows map[string]bool
