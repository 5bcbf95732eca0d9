// Package access resolves a caller's role on a project. Roles are computed
// fresh per call from Project ownership and accepted Memberships — never
// stored, never cached, no in-memory object graph. The policy itself only
// classifies; dependent operations turn RoleNone into ErrUnauthorized.
package access

import (
	"errors"

	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// Policy answers "what may this account do on this project".
type Policy struct {
	db *sqlite.DB
}

// NewPolicy creates an access policy over the store.
func NewPolicy(db *sqlite.DB) *Policy {
	return &Policy{db: db}
}

// ResolveRole classifies the account's authority over the project:
// architect iff it owns the project, operator/guest iff an accepted
// membership with that role exists, none otherwise. A missing project
// resolves to none rather than an error.
func (p *Policy) ResolveRole(projectID, accountID string) (domain.Role, error) {
	project, err := p.db.GetProject(projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, err
	}
	if project.OwnerID == accountID {
		return domain.RoleArchitect, nil
	}

	m, err := p.db.GetAcceptedMembership(projectID, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, err
	}
	return m.Role, nil
}

// Require resolves the role and returns ErrUnauthorized unless check passes.
func (p *Policy) Require(projectID, accountID string, check func(domain.Role) bool) (domain.Role, error) {
	role, err := p.ResolveRole(projectID, accountID)
	if err != nil {
		return role, err
	}
	if !check(role) {
		return role, domain.ErrUnauthorized
	}
	return role, nil
}
