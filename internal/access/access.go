// Package access holds the authorization predicates shared by every handler
// and service that touches a project.
package access

import (
	"strings"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// HasAccess reports whether principalID is the project's owner or one of its
// team members. Ids are compared in canonical string form.
func HasAccess(project *models.Project, principalID string) bool {
	if project == nil {
		return false
	}
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return false
	}
	if models.FormatID(project.OwnerID) == principalID {
		return true
	}
	return project.TeamMembers.Contains(principalID)
}

// IsAdmin is the role predicate used for privileged routes.
func IsAdmin(p models.Principal) bool {
	return p.IsAdmin()
}

// CanView reports whether p may read the project: admins always may,
// everyone else needs HasAccess.
func CanView(project *models.Project, p models.Principal) bool {
	return IsAdmin(p) || HasAccess(project, p.ID)
}
