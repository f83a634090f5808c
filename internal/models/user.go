package models

import "time"

// Role represents a position in the moderation hierarchy.
type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var roleLevels = map[Role]int{
	RoleUser:       0,
	RoleModerator:  1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Level returns the rank of the role. Unknown values rank as a plain user.
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether the role satisfies the permission checks of min.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level()
}

// Valid reports whether the role is one of the known hierarchy members.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// ParseRole maps a raw string onto a known role.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	return role, role.Valid()
}

// User represents an account stored in the users table. Profile fields mirror
// the public researcher profile shown next to submissions.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Name          *string    `db:"name" json:"name,omitempty"`
	Affiliation   *string    `db:"affiliation" json:"affiliation,omitempty"`
	ORCID         *string    `db:"orcid" json:"orcid,omitempty"`
	LinkedIn      *string    `db:"linkedin" json:"linkedin,omitempty"`
	GitHub        *string    `db:"github" json:"github,omitempty"`
	GoogleScholar *string    `db:"google_scholar" json:"google_scholar,omitempty"`
	AvatarType    string     `db:"avatar_type" json:"avatar_type"`
	AvatarValue   *string    `db:"avatar_value" json:"avatar_value,omitempty"`
	Active        bool       `db:"active" json:"active"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicProfile is the subset of a user safe to expose to other visitors.
type PublicProfile struct {
	ID            string  `db:"id" json:"id"`
	Name          *string `db:"name" json:"name,omitempty"`
	Affiliation   *string `db:"affiliation" json:"affiliation,omitempty"`
	ORCID         *string `db:"orcid" json:"orcid,omitempty"`
	LinkedIn      *string `db:"linkedin" json:"linkedin,omitempty"`
	GitHub        *string `db:"github" json:"github,omitempty"`
	GoogleScholar *string `db:"google_scholar" json:"google_scholar,omitempty"`
	AvatarType    string  `db:"avatar_type" json:"avatar_type"`
	AvatarValue   *string `db:"avatar_value" json:"avatar_value,omitempty"`
}

// RoleAssignment represents an explicit role grant in the roles table.
// Accounts without a row are treated as plain users.
type RoleAssignment struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
