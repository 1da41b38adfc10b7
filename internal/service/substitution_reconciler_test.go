package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

func confirmedAssignment(id int64, day models.Day, periodID, teacherID int64) models.SubstitutionAssignment {
	return models.SubstitutionAssignment{
		ID:                id,
		Date:              "2024-06-03",
		Day:               day,
		PeriodID:          periodID,
		ClassID:           5,
		SubjectID:         2,
		OriginalTeacherID: 9,
		TeacherID:         teacherID,
	}
}

func TestReconcilerStartsConverged(t *testing.T) {
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{confirmedAssignment(11, models.Monday, 1, 4)})

	assert.Equal(t, "2024-06-03", r.Date())
	assert.True(t, r.Converged())
	assert.Equal(t, models.CellConfirmed, r.State(models.CellKey{Day: models.Monday, PeriodID: 1}))
	assert.Equal(t, models.CellEmpty, r.State(models.CellKey{Day: models.Monday, PeriodID: 2}))
	plan := r.Plan()
	assert.Len(t, plan.Upserts, 1)
	assert.Empty(t, plan.Deletes)
}

func TestReconcilerStates(t *testing.T) {
	key := models.CellKey{Day: models.Monday, PeriodID: 1}
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{confirmedAssignment(11, models.Monday, 1, 4)})

	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 6})
	assert.Equal(t, models.CellPendingUpdate, r.State(key))
	pending, ok := r.Pending(key)
	require.True(t, ok)
	assert.Equal(t, int64(11), pending.ID)
	assert.Equal(t, "2024-06-03", pending.Date)

	r.Discard(key)
	assert.Equal(t, models.CellPendingDelete, r.State(key))
	assert.False(t, r.Converged())
	assert.Equal(t, int64(11), r.PersistedID(key))

	other := models.CellKey{Day: models.Tuesday, PeriodID: 2}
	r.Assign(models.SubstitutionAssignment{Day: models.Tuesday, PeriodID: 2, TeacherID: 7})
	assert.Equal(t, models.CellPendingCreate, r.State(other))
	assert.Equal(t, int64(0), r.PersistedID(other))
}

func TestReconcilerPlanOrdersKeys(t *testing.T) {
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{
		confirmedAssignment(11, models.Friday, 1, 4),
		confirmedAssignment(12, models.Monday, 3, 4),
	})
	r.Discard(models.CellKey{Day: models.Friday, PeriodID: 1})
	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 6})

	plan := r.Plan()

	assert.Equal(t, []models.CellKey{
		{Day: models.Monday, PeriodID: 1},
		{Day: models.Monday, PeriodID: 3},
	}, plan.Upserts)
	assert.Equal(t, []models.CellKey{{Day: models.Friday, PeriodID: 1}}, plan.Deletes)
}

func TestReconcilerConfirmConverges(t *testing.T) {
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{confirmedAssignment(11, models.Friday, 1, 4)})
	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 6})
	r.Discard(models.CellKey{Day: models.Friday, PeriodID: 1})
	require.False(t, r.Converged())

	saved := confirmedAssignment(21, models.Monday, 1, 6)
	r.Confirm(saved, r.Revision(saved.Key()))
	friday := models.CellKey{Day: models.Friday, PeriodID: 1}
	r.ConfirmDelete(friday, r.Revision(friday))

	assert.True(t, r.Converged())
	assert.Equal(t, models.CellConfirmed, r.State(saved.Key()))
	assert.Equal(t, models.CellEmpty, r.State(models.CellKey{Day: models.Friday, PeriodID: 1}))
}

func TestReconcilerConfirmKeepsNewerEdit(t *testing.T) {
	key := models.CellKey{Day: models.Monday, PeriodID: 1}
	r := NewReconciler("2024-06-03", nil)
	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 4})
	sent := r.Revision(key)

	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 6})
	r.Confirm(confirmedAssignment(21, models.Monday, 1, 4), sent)

	assert.Equal(t, models.CellPendingUpdate, r.State(key))
	pend, ok := r.Pending(key)
	require.True(t, ok)
	assert.Equal(t, int64(6), pend.TeacherID)
	assert.Equal(t, int64(21), pend.ID)
	base, ok := r.Baseline(key)
	require.True(t, ok)
	assert.Equal(t, int64(4), base.TeacherID)
	assert.False(t, r.Converged())
}

func TestReconcilerConfirmAfterDiscardLeavesDelete(t *testing.T) {
	key := models.CellKey{Day: models.Monday, PeriodID: 1}
	r := NewReconciler("2024-06-03", nil)
	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 4})
	sent := r.Revision(key)

	r.Discard(key)
	r.Confirm(confirmedAssignment(21, models.Monday, 1, 4), sent)

	assert.Equal(t, models.CellPendingDelete, r.State(key))
	assert.Equal(t, []models.CellKey{key}, r.Plan().Deletes)
}

func TestReconcilerConfirmDeleteKeepsReassignment(t *testing.T) {
	key := models.CellKey{Day: models.Friday, PeriodID: 1}
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{confirmedAssignment(11, models.Friday, 1, 4)})
	r.Discard(key)
	sent := r.Revision(key)

	r.Assign(models.SubstitutionAssignment{Day: models.Friday, PeriodID: 1, TeacherID: 6})
	r.ConfirmDelete(key, sent)

	assert.Equal(t, models.CellPendingCreate, r.State(key))
	pend, ok := r.Pending(key)
	require.True(t, ok)
	assert.Equal(t, int64(0), pend.ID)
	assert.Equal(t, int64(6), pend.TeacherID)
}

func TestReconcilerPublishedChangeIsPending(t *testing.T) {
	key := models.CellKey{Day: models.Monday, PeriodID: 1}
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{confirmedAssignment(11, models.Monday, 1, 4)})

	r.Assign(models.SubstitutionAssignment{Day: models.Monday, PeriodID: 1, TeacherID: 4, Published: true})

	assert.Equal(t, models.CellPendingUpdate, r.State(key))
}

func TestReconcilerSnapshot(t *testing.T) {
	r := NewReconciler("2024-06-03", []models.SubstitutionAssignment{
		confirmedAssignment(11, models.Wednesday, 1, 4),
		confirmedAssignment(12, models.Monday, 2, 4),
	})
	r.Discard(models.CellKey{Day: models.Wednesday, PeriodID: 1})

	cells := r.Snapshot()

	require.Len(t, cells, 2)
	assert.Equal(t, models.CellKey{Day: models.Monday, PeriodID: 2}, cells[0].Key)
	assert.Equal(t, models.CellConfirmed, cells[0].State)
	assert.Equal(t, models.CellPendingDelete, cells[1].State)
	assert.Nil(t, cells[1].Pending)
	require.NotNil(t, cells[1].Baseline)
	assert.Equal(t, int64(11), cells[1].Baseline.ID)
}
