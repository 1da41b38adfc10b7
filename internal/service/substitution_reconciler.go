package service

import (
	"sort"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// Reconciler tracks the operator's pending substitutions for one date
// against the last state the ERP confirmed. It performs no I/O and is not
// safe for concurrent use; the owning workspace serialises access.
type Reconciler struct {
	date     string
	baseline map[models.CellKey]models.SubstitutionAssignment
	pending  map[models.CellKey]models.SubstitutionAssignment
	// revisions counts operator edits per cell. A write confirmation only
	// touches pending when the cell has not been edited since it was sent.
	revisions map[models.CellKey]uint64
}

// ReconcilePlan lists the writes needed to converge pending and baseline.
type ReconcilePlan struct {
	Upserts []models.CellKey
	Deletes []models.CellKey
}

// NewReconciler starts from the confirmed assignments of date. Both sides
// begin identical, so every cell is either EMPTY or CONFIRMED.
func NewReconciler(date string, confirmed []models.SubstitutionAssignment) *Reconciler {
	r := &Reconciler{
		date:      date,
		baseline:  make(map[models.CellKey]models.SubstitutionAssignment, len(confirmed)),
		pending:   make(map[models.CellKey]models.SubstitutionAssignment, len(confirmed)),
		revisions: make(map[models.CellKey]uint64),
	}
	for _, a := range confirmed {
		r.baseline[a.Key()] = a
		r.pending[a.Key()] = a
	}
	return r
}

// Date is the substitution date this reconciler covers.
func (r *Reconciler) Date() string {
	return r.date
}

// State derives the cell state from both sides of the reconciliation.
func (r *Reconciler) State(key models.CellKey) models.CellState {
	base, inBase := r.baseline[key]
	pend, inPending := r.pending[key]
	switch {
	case !inBase && !inPending:
		return models.CellEmpty
	case !inBase:
		return models.CellPendingCreate
	case !inPending:
		return models.CellPendingDelete
	case sameAssignment(base, pend):
		return models.CellConfirmed
	default:
		return models.CellPendingUpdate
	}
}

func sameAssignment(a, b models.SubstitutionAssignment) bool {
	return a.ID == b.ID && a.TeacherID == b.TeacherID && a.Published == b.Published
}

// Pending returns the operator's current value for key.
func (r *Reconciler) Pending(key models.CellKey) (models.SubstitutionAssignment, bool) {
	a, ok := r.pending[key]
	return a, ok
}

// Baseline returns the last confirmed value for key.
func (r *Reconciler) Baseline(key models.CellKey) (models.SubstitutionAssignment, bool) {
	a, ok := r.baseline[key]
	return a, ok
}

// Assign records a chosen substitute for key. A cell with a confirmed
// assignment keeps that assignment's id so the write becomes an update.
func (r *Reconciler) Assign(a models.SubstitutionAssignment) {
	key := a.Key()
	a.Date = r.date
	if base, ok := r.baseline[key]; ok && a.ID == 0 {
		a.ID = base.ID
	}
	r.pending[key] = a
	r.revisions[key]++
}

// Discard drops the pending value for key. A key still present in the
// baseline becomes PENDING_DELETE.
func (r *Reconciler) Discard(key models.CellKey) {
	delete(r.pending, key)
	r.revisions[key]++
}

// Revision identifies the operator's current edit of key. Capture it when a
// write is sent and hand it back to Confirm or ConfirmDelete.
func (r *Reconciler) Revision(key models.CellKey) uint64 {
	return r.revisions[key]
}

// Confirm stores the ERP's record for key as the baseline. The pending side
// takes the record only if key is still at revision; a newer edit is kept
// and adopts the record's id so it is written as an update.
func (r *Reconciler) Confirm(saved models.SubstitutionAssignment, revision uint64) {
	key := saved.Key()
	r.baseline[key] = saved
	if r.revisions[key] == revision {
		r.pending[key] = saved
		return
	}
	if pend, ok := r.pending[key]; ok && !pend.Persisted() {
		pend.ID = saved.ID
		r.pending[key] = pend
	}
}

// ConfirmDelete drops key from the baseline. The pending side is dropped
// only if key is still at revision; a newer edit is kept as a new record.
func (r *Reconciler) ConfirmDelete(key models.CellKey, revision uint64) {
	delete(r.baseline, key)
	if r.revisions[key] == revision {
		delete(r.pending, key)
		return
	}
	if pend, ok := r.pending[key]; ok {
		pend.ID = 0
		r.pending[key] = pend
	}
}

// PersistedID returns the ERP id known for key, preferring the baseline.
func (r *Reconciler) PersistedID(key models.CellKey) int64 {
	if base, ok := r.baseline[key]; ok && base.Persisted() {
		return base.ID
	}
	if pend, ok := r.pending[key]; ok && pend.Persisted() {
		return pend.ID
	}
	return 0
}

// Plan returns every pending key as an upsert and every baseline-only key as
// a delete, in day/period order.
func (r *Reconciler) Plan() ReconcilePlan {
	plan := ReconcilePlan{
		Upserts: make([]models.CellKey, 0, len(r.pending)),
		Deletes: []models.CellKey{},
	}
	for key := range r.pending {
		plan.Upserts = append(plan.Upserts, key)
	}
	for key := range r.baseline {
		if _, ok := r.pending[key]; !ok {
			plan.Deletes = append(plan.Deletes, key)
		}
	}
	sortKeys(plan.Upserts)
	sortKeys(plan.Deletes)
	return plan
}

// Converged reports whether pending and baseline hold the same keys and ids.
func (r *Reconciler) Converged() bool {
	if len(r.pending) != len(r.baseline) {
		return false
	}
	for key, pend := range r.pending {
		base, ok := r.baseline[key]
		if !ok || base.ID != pend.ID {
			return false
		}
	}
	return true
}

// Snapshot lists every non-empty cell with its state.
func (r *Reconciler) Snapshot() []models.CellSnapshot {
	keys := make(map[models.CellKey]struct{}, len(r.pending)+len(r.baseline))
	for key := range r.pending {
		keys[key] = struct{}{}
	}
	for key := range r.baseline {
		keys[key] = struct{}{}
	}
	ordered := make([]models.CellKey, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sortKeys(ordered)

	cells := make([]models.CellSnapshot, 0, len(ordered))
	for _, key := range ordered {
		cell := models.CellSnapshot{Key: key, State: r.State(key)}
		if pend, ok := r.pending[key]; ok {
			pend := pend
			cell.Pending = &pend
		}
		if base, ok := r.baseline[key]; ok {
			base := base
			cell.Baseline = &base
		}
		cells = append(cells, cell)
	}
	return cells
}

func sortKeys(keys []models.CellKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
