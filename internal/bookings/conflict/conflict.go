// Package conflict holds the pure interval logic shared by booking creation,
// conflict resolution and calendar import. Nothing here touches storage.
package conflict

import (
	"fmt"
	"sort"
	"time"

	"cowork/pkg/model"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func Of(b *model.Booking) Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Equal(o Interval) bool {
	return i.Start.Equal(o.Start) && i.End.Equal(o.End)
}

// Extend widens the interval by padding on both sides.
func (i Interval) Extend(padding time.Duration) Interval {
	return Interval{Start: i.Start.Add(-padding), End: i.End.Add(padding)}
}

// Overlaps reports whether a and b collide once both are extended by padding.
// Touching boundaries never collide.
func Overlaps(a, b Interval, padding time.Duration) bool {
	a = a.Extend(padding)
	b = b.Extend(padding)
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// FindConflicts returns the active bookings whose padded interval overlaps the
// candidate, skipping excludeID. The result is ordered by (start, id) whatever
// the order of the input.
func FindConflicts(space *model.Space, candidate Interval, excludeID string, bookings []*model.Booking) []*model.Booking {
	padding := space.Padding()
	var out []*model.Booking
	for _, b := range bookings {
		if b.ID == excludeID || !b.Status.IsActive() {
			continue
		}
		if Overlaps(candidate, Of(b), padding) {
			out = append(out, b)
		}
	}
	SortBookings(out)
	return out
}

// Cluster returns the transitive closure of overlaps among active bookings
// starting from seedID, seed included. It returns nil when the seed is not an
// active member of bookings.
func Cluster(space *model.Space, seedID string, bookings []*model.Booking) []*model.Booking {
	active := activeOnly(bookings)
	var seed *model.Booking
	for _, b := range active {
		if b.ID == seedID {
			seed = b
			break
		}
	}
	if seed == nil {
		return nil
	}

	padding := space.Padding()
	seen := map[string]bool{seed.ID: true}
	queue := []*model.Booking{seed}
	members := []*model.Booking{seed}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, other := range active {
			if seen[other.ID] {
				continue
			}
			if Overlaps(Of(cur), Of(other), padding) {
				seen[other.ID] = true
				queue = append(queue, other)
				members = append(members, other)
			}
		}
	}

	SortBookings(members)
	return members
}

// Clusters groups the active bookings into overlap components and returns the
// ones that still hold at least one booking in Conflict status, ordered by
// their earliest member.
func Clusters(space *model.Space, bookings []*model.Booking) []model.ConflictCluster {
	active := activeOnly(bookings)
	SortBookings(active)

	assigned := map[string]bool{}
	var out []model.ConflictCluster
	for _, b := range active {
		if assigned[b.ID] {
			continue
		}
		members := Cluster(space, b.ID, active)
		hasConflict := false
		for _, m := range members {
			assigned[m.ID] = true
			if m.Status == model.StatusConflict {
				hasConflict = true
			}
		}
		if hasConflict {
			out = append(out, model.ConflictCluster{SpaceID: space.ID, Bookings: members})
		}
	}
	return out
}

// Admission describes how a candidate enters the active set.
type Admission struct {
	// Status is Confirmed when nothing overlaps, Conflict otherwise.
	Status model.BookingStatus
	// Conflicts is every active booking the candidate overlaps.
	Conflicts []*model.Booking
	// Demote holds the overlapping Pending or Confirmed bookings that must
	// move to Conflict alongside the candidate.
	Demote []*model.Booking
	// Blocking holds overlapping bookings that are already in progress or
	// finished and therefore cannot be displaced.
	Blocking []*model.Booking
}

func (a Admission) ConflictIDs() []string {
	return IDs(a.Conflicts)
}

func (a Admission) BlockingIDs() []string {
	return IDs(a.Blocking)
}

// PlanAdmission decides the initial status of a candidate and the side effects
// on the bookings it overlaps.
func PlanAdmission(space *model.Space, candidate Interval, excludeID string, bookings []*model.Booking) Admission {
	conflicts := FindConflicts(space, candidate, excludeID, bookings)
	adm := Admission{Status: model.StatusConfirmed, Conflicts: conflicts}
	if len(conflicts) == 0 {
		return adm
	}

	adm.Status = model.StatusConflict
	for _, c := range conflicts {
		switch {
		case c.Status == model.StatusPending || c.Status == model.StatusConfirmed:
			adm.Demote = append(adm.Demote, c)
		case !c.Status.IsDisplaceable():
			adm.Blocking = append(adm.Blocking, c)
		}
	}
	return adm
}

// Violation is a pair of live bookings that overlap.
type Violation struct {
	A, B *model.Booking
}

func (v Violation) String() string {
	return fmt.Sprintf("%s overlaps %s", v.A.ID, v.B.ID)
}

// LiveOverlaps lists every pair of live bookings whose padded intervals
// overlap. A healthy ledger has none.
func LiveOverlaps(space *model.Space, bookings []*model.Booking) []Violation {
	var live []*model.Booking
	for _, b := range bookings {
		if b.Status.IsLive() {
			live = append(live, b)
		}
	}
	SortBookings(live)

	padding := space.Padding()
	var out []Violation
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			// sorted by start: once padded starts no longer overlap, stop
			if !live[j].StartTime.Add(-padding).Before(live[i].EndTime.Add(padding)) {
				break
			}
			if Overlaps(Of(live[i]), Of(live[j]), padding) {
				out = append(out, Violation{A: live[i], B: live[j]})
			}
		}
	}
	return out
}

func SortBookings(bs []*model.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].StartTime.Equal(bs[j].StartTime) {
			return bs[i].StartTime.Before(bs[j].StartTime)
		}
		return bs[i].ID < bs[j].ID
	})
}

func IDs(bs []*model.Booking) []string {
	ids := make([]string, 0, len(bs))
	for _, b := range bs {
		ids = append(ids, b.ID)
	}
	return ids
}

func activeOnly(bookings []*model.Booking) []*model.Booking {
	out := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status.IsActive() {
			out = append(out, b)
		}
	}
	return out
}
