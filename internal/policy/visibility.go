// Package policy decides which dataset rows an actor may see and which
// moderation transitions they may perform. All checks are pure functions over
// the resolved role so they can be tested without a session fixture.
package policy

import (
	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

// CanSeeAllStatuses reports whether collection queries for the role may span
// every moderation status. Everyone else is pinned to approved rows only,
// including authenticated users, moderators and admins.
func CanSeeAllStatuses(role models.Role) bool {
	return role == models.RoleSuperAdmin
}

// CanView reports whether a single fetched record is visible to the role.
// Callers must translate a false result into NotFound so that denial does not
// leak the record's existence.
func CanView(role models.Role, status models.DatasetStatus) bool {
	if status == models.StatusApproved {
		return true
	}
	return CanSeeAllStatuses(role)
}

// CanModerate reports whether the role may decide pending submissions.
func CanModerate(role models.Role) bool {
	return role.AtLeast(models.RoleModerator)
}

// AuthorizeTransition gates a moderation decision on the dataset's current
// status. It distinguishes a role failure from a state failure so callers can
// map each to its own response.
func AuthorizeTransition(role models.Role, current models.DatasetStatus) error {
	if !CanModerate(role) {
		return appErrors.Clone(appErrors.ErrForbidden, "moderator role required")
	}
	if current != models.StatusPending {
		return appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}
	return nil
}

// DecisionTarget validates the requested outcome of a transition. Only the
// two terminal states are reachable from pending.
func DecisionTarget(next models.DatasetStatus) error {
	switch next {
	case models.StatusApproved, models.StatusRejected:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, "decision must approve or reject")
	}
}
