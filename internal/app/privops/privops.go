// Package privops is the narrow set of privileged operations: the only code
// paths allowed to write rows the acting account does not own. Ordinary
// callers are confined to their own rows; each method here performs its own
// authorization check before the elevated write, keeping the blast radius
// of the escalation small and auditable.
package privops

import (
	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/app/access"
	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// Ops holds the privileged operation set.
type Ops struct {
	db     *sqlite.DB
	policy *access.Policy
}

// New creates the privileged op set.
func New(db *sqlite.DB, policy *access.Policy) *Ops {
	return &Ops{db: db, policy: policy}
}

// ApproveTimeLog transitions another account's pending entry to approved.
// The role check runs before the elevated write, never after. Returns
// whether this call performed the transition (false on an already-approved
// entry, which is a benign no-op).
func (o *Ops) ApproveTimeLog(projectID, logID, actingAccountID string, costImpact decimal.Decimal) (bool, error) {
	if _, err := o.policy.Require(projectID, actingAccountID, domain.Role.CanApprove); err != nil {
		return false, err
	}
	entry, err := o.db.GetTimeLog(logID)
	if err != nil {
		return false, err
	}
	if entry.ProjectID != projectID {
		return false, domain.ErrNotFound
	}
	return o.db.ApproveTimeLog(logID, costImpact)
}

// GrantCredits adds credits to an account. Callers are system actors whose
// authorization happened upstream, like the streak engine acting on the
// account's own activity. Billing-event grants do not pass through here:
// they are part of the reconciler's transactional event application.
func (o *Ops) GrantCredits(accountID string, n int64) error {
	if n <= 0 {
		return nil
	}
	return o.db.AddCredits(accountID, n)
}
