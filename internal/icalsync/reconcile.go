package icalsync

import (
	"time"

	"cowork/internal/bookings/conflict"
	"cowork/internal/bookings/ledger"
	"cowork/internal/bookings/repository"
	"cowork/pkg/model"
)

const (
	ReasonRemovedFromFeed = "removed from external calendar"
	ReasonSourceRemoved   = "import source removed"
)

type ReconcileStats struct {
	Created   int
	Moved     int
	Cancelled int
	Unchanged int
	Retired   int
}

func (s *ReconcileStats) add(o ReconcileStats) {
	s.Created += o.Created
	s.Moved += o.Moved
	s.Cancelled += o.Cancelled
	s.Unchanged += o.Unchanged
	s.Retired += o.Retired
}

// Reconcile brings the shadows of sourceURL in line with occs. history holds
// every stored shadow of the source, terminal ones included; a UID whose
// latest shadow was cancelled by a person or marked no-show is not imported
// again. passStart is the time the pass began; shadows that ended before it
// are history and are left alone when the feed no longer lists them.
func Reconcile(l *ledger.Ledger, sourceURL string, occs []Occurrence, history []*model.Booking, policy ledger.SurvivorPolicy, passStart time.Time) (ReconcileStats, error) {
	var stats ReconcileStats
	retired := retiredShadows(l, history)

	shadows := map[string]*model.Booking{}
	for _, b := range l.Active() {
		if b.IsExternal && b.ExternalSourceURL == sourceURL {
			shadows[b.ExternalUID] = b
		}
	}

	seen := make(map[string]bool, len(occs))
	var settle []string

	for _, occ := range occs {
		if seen[occ.UID] {
			continue
		}
		seen[occ.UID] = true

		shadow, ok := shadows[occ.UID]
		if !ok {
			if prev := retired[occ.UID]; prev != nil && !reimportable(prev) {
				stats.Retired++
				continue
			}
			b := &model.Booking{
				ID:                repository.NewBookingID(),
				StartTime:         occ.Interval.Start,
				EndTime:           occ.Interval.End,
				IsExternal:        true,
				ExternalSourceURL: sourceURL,
				ExternalUID:       occ.UID,
			}
			if err := l.Insert(b, l.Plan(occ.Interval, "")); err != nil {
				return stats, err
			}
			stats.Created++
			continue
		}

		if conflict.Of(shadow).Equal(occ.Interval) || !shadow.Status.IsDisplaceable() {
			stats.Unchanged++
			continue
		}

		formerPartners := conflict.IDs(l.Conflicts(shadow))
		if err := l.Move(shadow.ID, occ.Interval); err != nil {
			return stats, err
		}
		if err := l.Reevaluate(shadow.ID); err != nil {
			return stats, err
		}
		if err := l.Readmit(shadow.ID); err != nil {
			return stats, err
		}
		settle = append(settle, formerPartners...)
		stats.Moved++
	}

	for _, shadow := range l.Active() {
		if !shadow.IsExternal || shadow.ExternalSourceURL != sourceURL || seen[shadow.ExternalUID] {
			continue
		}
		cancelled, partners, err := cancelShadow(l, shadow, ReasonRemovedFromFeed, passStart)
		if err != nil {
			return stats, err
		}
		if cancelled {
			settle = append(settle, partners...)
			stats.Cancelled++
		}
	}

	if err := l.SettleSurvivors(settle, policy); err != nil {
		return stats, err
	}
	return stats, nil
}

// retiredShadows maps each UID to its most recently updated shadow that is no
// longer active. history must be ordered by update time.
func retiredShadows(l *ledger.Ledger, history []*model.Booking) map[string]*model.Booking {
	out := map[string]*model.Booking{}
	for _, b := range history {
		if l.Get(b.ID) != nil || b.Status.IsActive() {
			continue
		}
		out[b.ExternalUID] = b
	}
	return out
}

// reimportable reports whether a retired shadow was cancelled by sync itself,
// so the feed listing its UID again brings the booking back.
func reimportable(b *model.Booking) bool {
	if b.Status != model.StatusCancelled {
		return false
	}
	return b.CancellationReason == ReasonRemovedFromFeed || b.CancellationReason == ReasonSourceRemoved
}

// CancelRemovedSources cancels the upcoming shadows of feeds that are no
// longer configured for the space.
func CancelRemovedSources(l *ledger.Ledger, urls []string, policy ledger.SurvivorPolicy, passStart time.Time) (int, error) {
	configured := make(map[string]bool, len(urls))
	for _, u := range urls {
		configured[u] = true
	}

	var (
		settle    []string
		cancelled int
	)
	for _, b := range l.Active() {
		if !b.IsExternal || configured[b.ExternalSourceURL] {
			continue
		}
		ok, partners, err := cancelShadow(l, b, ReasonSourceRemoved, passStart)
		if err != nil {
			return cancelled, err
		}
		if ok {
			settle = append(settle, partners...)
			cancelled++
		}
	}

	return cancelled, l.SettleSurvivors(settle, policy)
}

func cancelShadow(l *ledger.Ledger, b *model.Booking, reason string, passStart time.Time) (bool, []string, error) {
	if b.Status.IsTerminal() || !b.Status.IsDisplaceable() || !b.EndTime.After(passStart) {
		return false, nil, nil
	}
	partners := conflict.IDs(l.Conflicts(b))
	if err := l.SetStatus(b.ID, model.StatusCancelled, reason); err != nil {
		return false, nil, err
	}
	return true, partners, nil
}
