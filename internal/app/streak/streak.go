// Package streak grants bonus credits for consecutive working days.
// Stopping a session on a new day extends the streak; a missed day resets
// it. Credits flow through the privileged op set since the streak engine
// writes an account balance on the account's behalf.
package streak

import (
	"time"

	"github.com/nexus-hq/nexusd/internal/app/privops"
	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// BonusCredits is granted each day the streak extends.
const BonusCredits = 10

// Service tracks per-account daily streaks.
type Service struct {
	db  *sqlite.DB
	ops *privops.Ops
}

// New creates the streak service.
func New(db *sqlite.DB, ops *privops.Ops) *Service {
	return &Service{db: db, ops: ops}
}

// Touch records activity on the given day and returns the updated streak.
// Same-day repeats are no-ops; only the first session of a day grants the
// bonus.
func (s *Service) Touch(accountID string, day time.Time) (domain.Streak, error) {
	st, err := s.db.GetStreak(accountID)
	if err != nil {
		return st, err
	}

	today := day.Truncate(24 * time.Hour)
	last := st.LastDate.Truncate(24 * time.Hour)

	switch {
	case !st.LastDate.IsZero() && today.Equal(last):
		return st, nil
	case !st.LastDate.IsZero() && today.Equal(last.Add(24*time.Hour)):
		st.CurrentDays++
	default:
		st.CurrentDays = 1
	}
	if st.CurrentDays > st.LongestDays {
		st.LongestDays = st.CurrentDays
	}
	st.LastDate = today
	st.AccountID = accountID

	if err := s.db.UpsertStreak(st); err != nil {
		return st, err
	}
	if err := s.ops.GrantCredits(accountID, BonusCredits); err != nil {
		return st, err
	}
	return st, nil
}

// Current returns the account's streak state.
func (s *Service) Current(accountID string) (domain.Streak, error) {
	return s.db.GetStreak(accountID)
}
