package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Base replaces gorm.Model: records are hard-deleted and serialized in camelCase.
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Role is the closed set of account kinds. It is assigned at registration
// and never changes.
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleNGO       Role = "ngo"
)

func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleNGO:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User represents a registered volunteer or organization account
type User struct {
	Base

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         Role   `gorm:"type:varchar(16);not null;index" json:"role,omitempty"`

	// Profile information
	Name     string                      `gorm:"not null" json:"name"`
	Bio      string                      `json:"bio,omitempty"`
	Location string                      `json:"location,omitempty"`
	Avatar   string                      `json:"avatar,omitempty"`
	Skills   datatypes.JSONSlice[string] `json:"skills,omitempty"`
}

func (u *User) IsVolunteer() bool { return u != nil && u.Role == RoleVolunteer }
func (u *User) IsNGO() bool       { return u != nil && u.Role == RoleNGO }

// NormalizeSkills never returns nil so JSON columns always hold an array.
func NormalizeSkills(skills []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
