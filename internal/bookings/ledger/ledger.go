// Package ledger is the per-space working set a write operation mutates. It is
// loaded inside a transaction, changed in memory through the status table and
// written back by Commit together with the notification events it produced.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cowork/internal/bookings/conflict"
	bookingserrors "cowork/internal/bookings/errors"
	"cowork/pkg/config"
	"cowork/pkg/model"

	"github.com/google/uuid"
)

// ErrOverlap means a commit would leave two live bookings overlapping.
var ErrOverlap = errors.New("live bookings overlap")

type BookingStore interface {
	FindActiveBySpace(ctx context.Context, spaceID string) ([]*model.Booking, error)
	Create(ctx context.Context, booking *model.Booking) error
	Update(ctx context.Context, booking *model.Booking) error
}

type OutboxStore interface {
	Insert(ctx context.Context, events []*model.NotificationEvent) error
}

// SurvivorPolicy decides whether a Conflict booking left without any
// overlapping partner is promoted to Confirmed.
type SurvivorPolicy func(b *model.Booking) bool

func KeepSurvivor(*model.Booking) bool { return false }

func ConfirmSurvivor(*model.Booking) bool { return true }

func PolicyFor(name string) SurvivorPolicy {
	if name == config.SurvivorConfirm {
		return ConfirmSurvivor
	}
	return KeepSurvivor
}

type Ledger struct {
	space *model.Space
	now   time.Time

	bookings []*model.Booking
	byID     map[string]*model.Booking
	created  map[string]bool
	dirty    map[string]bool
	events   []*model.NotificationEvent
}

// Load reads the active bookings of space. now stamps every change made
// through the ledger.
func Load(ctx context.Context, store BookingStore, space *model.Space, now time.Time) (*Ledger, error) {
	// TODO: bound the query to bookings ending after now minus padding once
	// completed bookings are moved out of the active set.
	bookings, err := store.FindActiveBySpace(ctx, space.ID)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		space:    space,
		now:      now.UTC().Truncate(time.Millisecond),
		byID:     make(map[string]*model.Booking, len(bookings)),
		created:  map[string]bool{},
		dirty:    map[string]bool{},
		bookings: bookings,
	}
	for _, b := range bookings {
		l.byID[b.ID] = b
	}
	return l, nil
}

func (l *Ledger) Space() *model.Space {
	return l.space
}

func (l *Ledger) Now() time.Time {
	return l.now
}

// Get returns the booking if it was active at load time or created since.
func (l *Ledger) Get(id string) *model.Booking {
	return l.byID[id]
}

// All returns every booking the ledger knows, including ones cancelled
// through it, ordered by (start, id).
func (l *Ledger) All() []*model.Booking {
	out := append([]*model.Booking(nil), l.bookings...)
	conflict.SortBookings(out)
	return out
}

func (l *Ledger) Active() []*model.Booking {
	var out []*model.Booking
	for _, b := range l.bookings {
		if b.Status.IsActive() {
			out = append(out, b)
		}
	}
	conflict.SortBookings(out)
	return out
}

// Conflicts returns the active bookings overlapping b, b excluded.
func (l *Ledger) Conflicts(b *model.Booking) []*model.Booking {
	return conflict.FindConflicts(l.space, conflict.Of(b), b.ID, l.bookings)
}

func (l *Ledger) Cluster(id string) []*model.Booking {
	return conflict.Cluster(l.space, id, l.bookings)
}

func (l *Ledger) Plan(iv conflict.Interval, excludeID string) conflict.Admission {
	return conflict.PlanAdmission(l.space, iv, excludeID, l.bookings)
}

// Insert adds a new booking with the status decided by adm and demotes the
// bookings adm names. The caller learns the outcome for b directly, so only
// demoted bookings get a conflict_detected event.
func (l *Ledger) Insert(b *model.Booking, adm conflict.Admission) error {
	if _, exists := l.byID[b.ID]; exists {
		return fmt.Errorf("booking %s already in ledger", b.ID)
	}
	b.SpaceID = l.space.ID
	b.Status = adm.Status
	b.CreatedAt = l.now
	b.UpdatedAt = l.now

	l.bookings = append(l.bookings, b)
	l.byID[b.ID] = b
	l.created[b.ID] = true

	for _, d := range adm.Demote {
		if err := l.demote(d, b); err != nil {
			return err
		}
	}
	return nil
}

// SetStatus applies one transition from the status table.
func (l *Ledger) SetStatus(id string, next model.BookingStatus, reason string) error {
	b := l.byID[id]
	if b == nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", bookingserrors.ErrInvalidTransition, b.Status, next)
	}

	b.Status = next
	if next == model.StatusCancelled || next == model.StatusNoShow {
		b.CancellationReason = reason
	}
	l.touch(b)
	return nil
}

// Move changes the interval of an existing booking without re-evaluating it.
func (l *Ledger) Move(id string, iv conflict.Interval) error {
	b := l.byID[id]
	if b == nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	b.StartTime = iv.Start
	b.EndTime = iv.End
	l.touch(b)
	return nil
}

// Reevaluate runs detection for id against the current set. When it overlaps
// anything, a displaceable booking moves to Conflict and every overlapping
// Pending or Confirmed booking is demoted with it.
func (l *Ledger) Reevaluate(id string) error {
	b := l.byID[id]
	if b == nil || !b.Status.IsActive() {
		return nil
	}
	conflicts := l.Conflicts(b)
	if len(conflicts) == 0 {
		return nil
	}

	if b.Status == model.StatusPending || b.Status == model.StatusConfirmed {
		if err := l.SetStatus(b.ID, model.StatusConflict, ""); err != nil {
			return err
		}
		l.notifyConflict(b, conflicts)
	}
	for _, c := range conflicts {
		if c.Status == model.StatusPending || c.Status == model.StatusConfirmed {
			if err := l.demote(c, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// Readmit confirms id when it sits in Conflict without overlapping anything,
// the status Plan gives a new booking over the same free interval.
func (l *Ledger) Readmit(id string) error {
	b := l.byID[id]
	if b == nil || b.Status != model.StatusConflict || len(l.Conflicts(b)) > 0 {
		return nil
	}
	return l.SetStatus(id, model.StatusConfirmed, "")
}

// SettleSurvivors applies policy to each listed booking that is still in
// Conflict but no longer overlaps anything.
func (l *Ledger) SettleSurvivors(ids []string, policy SurvivorPolicy) error {
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		b := l.byID[id]
		if b == nil || b.Status != model.StatusConflict || len(l.Conflicts(b)) > 0 {
			continue
		}
		if !policy(b) {
			continue
		}
		if err := l.SetStatus(id, model.StatusConfirmed, ""); err != nil {
			return err
		}
		l.Notify(b, model.OutcomeConfirmed, "no remaining conflicts")
	}
	return nil
}

// Notify queues an outbox event for b, written by Commit.
func (l *Ledger) Notify(b *model.Booking, outcome model.NotificationOutcome, reason string) {
	l.events = append(l.events, &model.NotificationEvent{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		SpaceID:   l.space.ID,
		Recipient: b.Recipient(),
		Outcome:   outcome,
		Reason:    reason,
		State:     model.OutboxPending,
		CreatedAt: l.now,
	})
}

func (l *Ledger) Events() []*model.NotificationEvent {
	return l.events
}

// Touched returns the bookings created or changed through the ledger.
func (l *Ledger) Touched() []*model.Booking {
	var out []*model.Booking
	for _, b := range l.bookings {
		if l.created[b.ID] || l.dirty[b.ID] {
			out = append(out, b)
		}
	}
	conflict.SortBookings(out)
	return out
}

// Commit checks the no-overlap guarantee for every touched booking, then
// writes creates, version-checked updates and events in that order.
func (l *Ledger) Commit(ctx context.Context, store BookingStore, outbox OutboxStore) error {
	touched := l.Touched()
	for _, v := range conflict.LiveOverlaps(l.space, l.Active()) {
		if l.created[v.A.ID] || l.dirty[v.A.ID] || l.created[v.B.ID] || l.dirty[v.B.ID] {
			return fmt.Errorf("%w: %s", ErrOverlap, v)
		}
	}

	for _, b := range touched {
		if l.created[b.ID] {
			if err := store.Create(ctx, b); err != nil {
				return err
			}
		}
	}

	ids := make([]string, 0, len(l.dirty))
	for id := range l.dirty {
		if !l.created[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := store.Update(ctx, l.byID[id]); err != nil {
			return err
		}
	}

	return outbox.Insert(ctx, l.events)
}

func (l *Ledger) touch(b *model.Booking) {
	b.UpdatedAt = l.now
	if !l.created[b.ID] {
		l.dirty[b.ID] = true
	}
}

func (l *Ledger) demote(d, cause *model.Booking) error {
	if d.Status == model.StatusConflict {
		return nil
	}
	if err := l.SetStatus(d.ID, model.StatusConflict, ""); err != nil {
		return err
	}
	l.notifyConflict(d, []*model.Booking{cause})
	return nil
}

func (l *Ledger) notifyConflict(b *model.Booking, with []*model.Booking) {
	if b.Recipient() == "" {
		return
	}
	l.Notify(b, model.OutcomeConflictDetected, "overlaps "+strings.Join(conflict.IDs(with), ", "))
}
