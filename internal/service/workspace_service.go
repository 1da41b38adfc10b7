package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/pkg/erpclient"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

type workspaceUpstream interface {
	TeacherTimetable(ctx context.Context, teacherID int64) ([]models.TimetableRecord, error)
	SubstitutionsByDate(ctx context.Context, date string) ([]models.SubstitutionAssignment, error)
	UpsertSubstitution(ctx context.Context, a models.SubstitutionAssignment) (*models.SubstitutionAssignment, error)
	DeleteSubstitution(ctx context.Context, id int64) error
}

type workspaceReference interface {
	Teachers(ctx context.Context) ([]models.Teacher, error)
	Periods(ctx context.Context) ([]models.Period, error)
	Holidays(ctx context.Context) ([]models.Holiday, error)
	Invalidate(ctx context.Context) error
}

type availabilityResolver interface {
	Resolve(ctx context.Context, q AvailabilityQuery) models.AvailabilityResult
}

type workspaceSessions interface {
	Restore(ctx context.Context, sessionKey string) RestoredSelection
	Save(ctx context.Context, sessionKey string, teacherID int64, date time.Time)
	Today() time.Time
}

type submissionRecorder interface {
	Record(ctx context.Context, attempt SubmissionAttempt)
	List(ctx context.Context, filter models.SubmissionLogFilter) ([]models.SubmissionLog, error)
}

type workspaceMetrics interface {
	RecordReconcileOperation(op models.Operation, outcome models.Outcome)
	RecordDroppedRecords(dropped []models.DroppedRecord)
	SetActiveWorkspaces(n int)
}

// WorkspaceConfig tunes workspace lifetime.
type WorkspaceConfig struct {
	IdleTTL time.Duration
}

// WorkspaceService owns the substitution console state of every operator
// session: the selected teacher and date, the timetable grid, the selected
// cell and the pending substitutions for the active date.
type WorkspaceService struct {
	upstream     workspaceUpstream
	reference    workspaceReference
	availability availabilityResolver
	sessions     workspaceSessions
	submissions  submissionRecorder
	metrics      workspaceMetrics
	store        *workspaceStore
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewWorkspaceService wires workspace dependencies. submissions and metrics
// may be nil.
func NewWorkspaceService(
	upstream workspaceUpstream,
	reference workspaceReference,
	availability availabilityResolver,
	sessions workspaceSessions,
	submissions submissionRecorder,
	metrics workspaceMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg WorkspaceConfig,
) *WorkspaceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	return &WorkspaceService{
		upstream:     upstream,
		reference:    reference,
		availability: availability,
		sessions:     sessions,
		submissions:  submissions,
		metrics:      metrics,
		store:        newWorkspaceStore(cfg.IdleTTL, nil),
		validator:    validate,
		logger:       logger,
	}
}

// workspace is the per-session state. ready is closed once the first load
// finished. mu guards every field below it; writeMu serialises writes to the
// ERP so two submissions of one session never interleave.
type workspace struct {
	key     string
	ready   chan struct{}
	writeMu sync.Mutex

	mu        sync.Mutex
	teacherID int64
	date      time.Time
	selected  *models.CellKey

	teachers   []models.Teacher
	periods    []models.Period
	holidays   models.HolidaySet
	candidates map[int64]string

	records    []models.TimetableRecord
	build      GridBuild
	reconciler *Reconciler

	timetableGen     uint64
	substitutionsGen uint64
}

// loadTicket pins the selection a fetch was issued for. The fetched slice is
// applied only if gen is still the latest for that slice.
type loadTicket struct {
	gen       uint64
	teacherID int64
	date      time.Time
}

func newWorkspace(key string, today time.Time) *workspace {
	return &workspace{
		key:        key,
		ready:      make(chan struct{}),
		date:       today,
		holidays:   models.HolidaySet{},
		build:      BuildGrid(nil, nil),
		reconciler: NewReconciler(models.FormatDate(today), nil),
	}
}

func (ws *workspace) nextTimetableLocked() loadTicket {
	ws.timetableGen++
	return loadTicket{gen: ws.timetableGen, teacherID: ws.teacherID, date: ws.date}
}

func (ws *workspace) nextSubstitutionsLocked() loadTicket {
	ws.substitutionsGen++
	return loadTicket{gen: ws.substitutionsGen, teacherID: ws.teacherID, date: ws.date}
}

func (ws *workspace) teacherName(id int64) string {
	for _, t := range ws.teachers {
		if t.UserID == id {
			return t.Name
		}
	}
	return ws.candidates[id]
}

func (ws *workspace) activeDay() (models.Day, bool) {
	return models.DayOf(ws.date)
}

// Open returns the session's workspace, restoring the persisted selection
// and loading all data the first time. refresh reloads everything from the
// ERP, dropping unsubmitted edits.
func (s *WorkspaceService) Open(ctx context.Context, session models.Session, refresh bool) (*dto.WorkspaceSnapshot, error) {
	ws, created, err := s.workspace(ctx, session)
	if err != nil {
		return nil, err
	}
	if refresh && !created {
		if err := s.reference.Invalidate(ctx); err != nil {
			s.logger.Warn("reference cache invalidation failed", zap.String("session", ws.key), zap.Error(err))
		}
		s.initialise(ctx, ws, false)
	}
	return s.snapshot(ws), nil
}

// Sweep evicts idle workspaces.
func (s *WorkspaceService) Sweep() int {
	remaining := s.store.Sweep()
	if s.metrics != nil {
		s.metrics.SetActiveWorkspaces(remaining)
	}
	return remaining
}

// RunJanitor sweeps idle workspaces every interval until ctx is done.
func (s *WorkspaceService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *WorkspaceService) workspaceFor(ctx context.Context, session models.Session) (*workspace, error) {
	ws, _, err := s.workspace(ctx, session)
	return ws, err
}

// workspace returns the session's workspace. The request that creates it runs
// the initial load; concurrent requests wait for that load to finish.
func (s *WorkspaceService) workspace(ctx context.Context, session models.Session) (*workspace, bool, error) {
	ws, created := s.store.GetOrCreate(session.Key, func() *workspace {
		return newWorkspace(session.Key, s.sessions.Today())
	})
	if created {
		if s.metrics != nil {
			s.metrics.SetActiveWorkspaces(s.store.Len())
		}
		defer close(ws.ready)
		s.initialise(ctx, ws, true)
		return ws, true, nil
	}
	select {
	case <-ws.ready:
		return ws, false, nil
	case <-ctx.Done():
		return nil, false, appErrors.Wrap(ctx.Err(), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "workspace is still loading")
	}
}

func (s *WorkspaceService) initialise(ctx context.Context, ws *workspace, restore bool) {
	if restore {
		restored := s.sessions.Restore(ctx, ws.key)
		ws.mu.Lock()
		ws.teacherID = restored.TeacherID
		ws.date = restored.Date
		ws.mu.Unlock()
		s.logger.Debug("workspace restored",
			zap.String("session", ws.key),
			zap.Int64("teacher_id", restored.TeacherID),
			zap.String("date", models.FormatDate(restored.Date)),
			zap.Bool("date_restored", restored.DateRestored),
		)
	}

	s.loadReference(ctx, ws)

	ws.mu.Lock()
	tt := ws.nextTimetableLocked()
	st := ws.nextSubstitutionsLocked()
	ws.mu.Unlock()
	s.load(ctx, ws, &tt, &st)
}

// loadReference fetches teachers, periods and holidays concurrently. A
// failed list degrades to empty.
func (s *WorkspaceService) loadReference(ctx context.Context, ws *workspace) {
	var (
		teachers []models.Teacher
		periods  []models.Period
		holidays []models.Holiday
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.reference.Teachers(gctx)
		if err != nil {
			s.logger.Warn("teachers unavailable", zap.String("session", ws.key), zap.Error(err))
			return nil
		}
		teachers = list
		return nil
	})
	g.Go(func() error {
		list, err := s.reference.Periods(gctx)
		if err != nil {
			s.logger.Warn("periods unavailable", zap.String("session", ws.key), zap.Error(err))
			return nil
		}
		periods = list
		return nil
	})
	g.Go(func() error {
		list, err := s.reference.Holidays(gctx)
		if err != nil {
			s.logger.Warn("holidays unavailable", zap.String("session", ws.key), zap.Error(err))
			return nil
		}
		holidays = list
		return nil
	})
	_ = g.Wait()

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.teachers = nonNil(teachers)
	ws.periods = nonNil(periods)
	ws.holidays = models.NewHolidaySet(holidays)
	s.rebuildGridLocked(ws)
}

// load fetches the requested slices concurrently and applies each one that
// is still current when it arrives.
func (s *WorkspaceService) load(ctx context.Context, ws *workspace, timetable, substitutions *loadTicket) {
	var g errgroup.Group
	if timetable != nil {
		g.Go(func() error {
			s.loadTimetable(ctx, ws, *timetable)
			return nil
		})
	}
	if substitutions != nil {
		g.Go(func() error {
			s.loadSubstitutions(ctx, ws, *substitutions)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *WorkspaceService) loadTimetable(ctx context.Context, ws *workspace, t loadTicket) bool {
	var records []models.TimetableRecord
	if t.teacherID > 0 {
		fetched, err := s.upstream.TeacherTimetable(ctx, t.teacherID)
		if err != nil {
			s.logger.Warn("timetable unavailable",
				zap.String("session", ws.key),
				zap.Int64("teacher_id", t.teacherID),
				zap.Error(err),
			)
		} else {
			records = fetched
		}
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if t.gen != ws.timetableGen {
		s.logger.Debug("stale timetable discarded", zap.String("session", ws.key), zap.Uint64("generation", t.gen))
		return false
	}
	ws.records = records
	s.rebuildGridLocked(ws)
	return true
}

func (s *WorkspaceService) loadSubstitutions(ctx context.Context, ws *workspace, t loadTicket) bool {
	date := models.FormatDate(t.date)
	confirmed := []models.SubstitutionAssignment{}
	if t.teacherID > 0 {
		all, err := s.upstream.SubstitutionsByDate(ctx, date)
		if err != nil {
			s.logger.Warn("substitutions unavailable",
				zap.String("session", ws.key),
				zap.String("date", date),
				zap.Error(err),
			)
		}
		for _, a := range all {
			if a.OriginalTeacherID == t.teacherID {
				confirmed = append(confirmed, a)
			}
		}
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if t.gen != ws.substitutionsGen {
		s.logger.Debug("stale substitutions discarded", zap.String("session", ws.key), zap.Uint64("generation", t.gen))
		return false
	}
	for i := range confirmed {
		if confirmed[i].TeacherName == "" {
			confirmed[i].TeacherName = ws.teacherName(confirmed[i].TeacherID)
		}
	}
	ws.reconciler = NewReconciler(date, confirmed)
	return true
}

func (s *WorkspaceService) rebuildGridLocked(ws *workspace) {
	ws.build = BuildGrid(ws.records, ws.periods)
	if len(ws.build.Dropped) == 0 {
		return
	}
	for _, d := range ws.build.Dropped {
		s.logger.Warn("timetable record dropped",
			zap.String("session", ws.key),
			zap.Int64("teacher_id", ws.teacherID),
			zap.String("reason", string(d.Reason)),
			zap.String("day", d.Record.Day),
			zap.Int64("period_id", d.Record.PeriodID),
			zap.Int64("class_id", d.Record.ClassID),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordDroppedRecords(ws.build.Dropped)
	}
}

// SelectTeacher switches the displayed teacher and reloads the timetable and
// substitutions for the active date.
func (s *WorkspaceService) SelectTeacher(ctx context.Context, session models.Session, req dto.SelectTeacherRequest) (*dto.WorkspaceSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher selection")
	}
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	if len(ws.teachers) > 0 && !rosterHas(ws.teachers, req.TeacherID) {
		ws.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	ws.teacherID = req.TeacherID
	ws.selected = nil
	ws.candidates = nil
	tt := ws.nextTimetableLocked()
	st := ws.nextSubstitutionsLocked()
	date := ws.date
	ws.mu.Unlock()

	s.sessions.Save(ctx, ws.key, req.TeacherID, date)
	s.load(ctx, ws, &tt, &st)
	return s.snapshot(ws), nil
}

// SelectDate switches the active date. The cell selection survives only when
// the new date falls on the same weekday.
func (s *WorkspaceService) SelectDate(ctx context.Context, session models.Session, req dto.SelectDateRequest) (*dto.WorkspaceSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	ws.date = date
	if ws.selected != nil {
		if day, ok := ws.activeDay(); !ok || day != ws.selected.Day {
			ws.selected = nil
			ws.candidates = nil
		}
	}
	st := ws.nextSubstitutionsLocked()
	teacherID := ws.teacherID
	ws.mu.Unlock()

	s.sessions.Save(ctx, ws.key, teacherID, date)
	s.load(ctx, ws, nil, &st)
	return s.snapshot(ws), nil
}

// SelectCell selects (day, period) and moves the active date to that weekday
// within the displayed week, reloading substitutions when the date changes.
func (s *WorkspaceService) SelectCell(ctx context.Context, session models.Session, req dto.SelectCellRequest) (*dto.WorkspaceSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cell selection")
	}
	day, ok := models.ParseDay(req.Day)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	if ws.teacherID == 0 {
		ws.mu.Unlock()
		return nil, appErrors.ErrNoTeacherSelected
	}
	if !ws.build.Grid.Has(day, req.PeriodID) {
		ws.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrInvalidSelection, "unknown period")
	}
	cellDate := WeekOf(ws.date).Date(day)
	if holiday, ok := ws.holidays.On(models.FormatDate(cellDate)); ok {
		ws.mu.Unlock()
		return nil, holidayError(holiday)
	}

	key := models.CellKey{Day: day, PeriodID: req.PeriodID}
	if ws.selected == nil || *ws.selected != key {
		ws.candidates = nil
	}
	ws.selected = &key

	var st *loadTicket
	if !cellDate.Equal(ws.date) {
		ws.date = cellDate
		ticket := ws.nextSubstitutionsLocked()
		st = &ticket
	}
	teacherID := ws.teacherID
	ws.mu.Unlock()

	if st != nil {
		s.sessions.Save(ctx, ws.key, teacherID, cellDate)
		s.load(ctx, ws, nil, st)
	}
	return s.snapshot(ws), nil
}

// Availability ranks the teachers free at the selected cell.
func (s *WorkspaceService) Availability(ctx context.Context, session models.Session) (*models.AvailabilityResult, error) {
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	if ws.selected == nil {
		ws.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrInvalidSelection, "select a cell first")
	}
	key := *ws.selected
	date := models.FormatDate(ws.date)
	if holiday, ok := ws.holidays.On(date); ok {
		ws.mu.Unlock()
		return nil, holidayError(holiday)
	}
	query := AvailabilityQuery{
		Date:             date,
		Day:              key.Day,
		PeriodID:         key.PeriodID,
		ExcludeTeacherID: ws.teacherID,
	}
	ws.mu.Unlock()

	result := s.availability.Resolve(ctx, query)

	ws.mu.Lock()
	if ws.selected != nil && *ws.selected == key {
		ws.candidates = make(map[int64]string, len(result.Candidates))
		for _, c := range result.Candidates {
			ws.candidates[c.TeacherID] = c.Name
		}
	}
	ws.mu.Unlock()
	return &result, nil
}

// AssignSubstitute records teacherId as the pending substitute of a cell on
// the active date and selects that cell.
func (s *WorkspaceService) AssignSubstitute(ctx context.Context, session models.Session, rawKey string, req dto.AssignSubstituteRequest) (*dto.WorkspaceSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute")
	}
	key, err := models.ParseCellKey(rawKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cell key")
	}
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	err = s.assignLocked(ws, key, req)
	ws.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.snapshot(ws), nil
}

func (s *WorkspaceService) assignLocked(ws *workspace, key models.CellKey, req dto.AssignSubstituteRequest) error {
	if err := s.checkActiveCellLocked(ws, key); err != nil {
		return err
	}
	if req.TeacherID == ws.teacherID {
		return appErrors.Clone(appErrors.ErrInvalidSelection, "a teacher cannot substitute for themselves")
	}

	classID, subjectID, _ := deriveClassSubject(ws.build.Grid.Cell(key.Day, key.PeriodID))
	published := false
	if prev, ok := ws.reconciler.Pending(key); ok {
		published = prev.Published
	}
	if req.Published != nil {
		published = *req.Published
	}
	ws.reconciler.Assign(models.SubstitutionAssignment{
		Day:               key.Day,
		PeriodID:          key.PeriodID,
		ClassID:           classID,
		SubjectID:         subjectID,
		OriginalTeacherID: ws.teacherID,
		TeacherID:         req.TeacherID,
		TeacherName:       ws.teacherName(req.TeacherID),
		Published:         published,
	})
	ws.selected = &key
	return nil
}

// RemoveSubstitute clears a cell. A persisted assignment is deleted in the
// ERP right away; one the ERP no longer knows is treated as removed and
// reported through a notice. Any other failure leaves the cell untouched.
func (s *WorkspaceService) RemoveSubstitute(ctx context.Context, session models.Session, rawKey string) (*dto.WorkspaceSnapshot, []string, error) {
	key, err := models.ParseCellKey(rawKey)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cell key")
	}
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	ws.mu.Lock()
	rec := ws.reconciler
	gen := ws.substitutionsGen
	teacherID := ws.teacherID
	date := rec.Date()
	pending, hasPending := rec.Pending(key)
	baseline, hasBaseline := rec.Baseline(key)
	id := rec.PersistedID(key)
	revision := rec.Revision(key)
	if !hasPending && !hasBaseline {
		ws.mu.Unlock()
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "no substitute assigned to this cell")
	}
	if id == 0 {
		rec.Discard(key)
		ws.mu.Unlock()
		return s.snapshot(ws), nil, nil
	}
	ws.mu.Unlock()

	subject := pending
	if !hasPending {
		subject = baseline
	}
	outcome, err := s.deleteAssignment(ctx, key, id, subject)
	s.report(ctx, ws.key, date, teacherID, []models.CellOutcome{outcome})
	if !outcome.Ok() {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to remove substitution")
	}

	ws.mu.Lock()
	if gen == ws.substitutionsGen {
		ws.reconciler.ConfirmDelete(key, revision)
	}
	ws.mu.Unlock()

	var notices []string
	if outcome.Outcome == models.OutcomeAlreadyGone {
		notices = append(notices, "The substitution had already been removed.")
	}
	return s.snapshot(ws), notices, nil
}

// SubmitSelected sends the pending assignment of the selected cell. Nothing
// is sent when validation fails.
func (s *WorkspaceService) SubmitSelected(ctx context.Context, session models.Session) (*dto.SubmitResponse, error) {
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	ws.mu.Lock()
	if ws.teacherID == 0 {
		ws.mu.Unlock()
		return nil, appErrors.ErrNoTeacherSelected
	}
	if ws.selected == nil {
		ws.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrInvalidSelection, "select a cell first")
	}
	key := *ws.selected
	gen := ws.substitutionsGen
	teacherID := ws.teacherID
	date := ws.reconciler.Date()
	revision := ws.reconciler.Revision(key)
	assignment, err := s.prepareUpsertLocked(ws, key)
	ws.mu.Unlock()
	if err != nil {
		return nil, err
	}

	outcome, err := s.upsertAssignment(ctx, key, assignment)
	s.report(ctx, ws.key, date, teacherID, []models.CellOutcome{outcome})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to save substitution")
	}

	ws.mu.Lock()
	if gen == ws.substitutionsGen {
		ws.reconciler.Confirm(*outcome.Assignment, revision)
	}
	ws.mu.Unlock()

	return &dto.SubmitResponse{Outcome: outcome, Workspace: s.snapshot(ws)}, nil
}

type plannedUpsert struct {
	key        models.CellKey
	assignment models.SubstitutionAssignment
	err        error
}

type plannedDelete struct {
	key        models.CellKey
	id         int64
	assignment models.SubstitutionAssignment
}

// SubmitAll upserts every pending cell, then deletes every cell that only
// the baseline still holds. Each write stands alone; only cells whose write
// succeeded advance the baseline.
func (s *WorkspaceService) SubmitAll(ctx context.Context, session models.Session) (*dto.BulkSubmitResponse, error) {
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	ws.mu.Lock()
	if ws.teacherID == 0 {
		ws.mu.Unlock()
		return nil, appErrors.ErrNoTeacherSelected
	}
	gen := ws.substitutionsGen
	teacherID := ws.teacherID
	date := ws.reconciler.Date()
	plan := ws.reconciler.Plan()
	revisions := make(map[models.CellKey]uint64, len(plan.Upserts)+len(plan.Deletes))
	for _, key := range append(append([]models.CellKey{}, plan.Upserts...), plan.Deletes...) {
		revisions[key] = ws.reconciler.Revision(key)
	}
	upserts := make([]plannedUpsert, 0, len(plan.Upserts))
	for _, key := range plan.Upserts {
		a, err := s.prepareUpsertLocked(ws, key)
		upserts = append(upserts, plannedUpsert{key: key, assignment: a, err: err})
	}
	deletes := make([]plannedDelete, 0, len(plan.Deletes))
	for _, key := range plan.Deletes {
		base, _ := ws.reconciler.Baseline(key)
		deletes = append(deletes, plannedDelete{key: key, id: ws.reconciler.PersistedID(key), assignment: base})
	}
	ws.mu.Unlock()

	result := models.BulkSubmitResult{Date: date, Outcomes: make([]models.CellOutcome, 0, len(upserts)+len(deletes))}
	for _, u := range upserts {
		if u.err != nil {
			appErr := appErrors.FromError(u.err)
			assignment := u.assignment
			result.Outcomes = append(result.Outcomes, models.CellOutcome{
				Key:        u.key,
				Operation:  models.OperationUpsert,
				Outcome:    models.OutcomeRejected,
				Assignment: &assignment,
				Code:       appErr.Code,
				Message:    appErr.Message,
			})
			continue
		}
		outcome, _ := s.upsertAssignment(ctx, u.key, u.assignment)
		result.Outcomes = append(result.Outcomes, outcome)
	}
	for _, d := range deletes {
		if d.id == 0 {
			assignment := d.assignment
			result.Outcomes = append(result.Outcomes, models.CellOutcome{
				Key:        d.key,
				Operation:  models.OperationDelete,
				Outcome:    models.OutcomeSucceeded,
				Assignment: &assignment,
			})
			continue
		}
		outcome, _ := s.deleteAssignment(ctx, d.key, d.id, d.assignment)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	ws.mu.Lock()
	current := gen == ws.substitutionsGen
	for _, o := range result.Outcomes {
		if o.Ok() {
			result.Succeeded++
		} else {
			result.Failed++
		}
		if !current || !o.Ok() {
			continue
		}
		switch o.Operation {
		case models.OperationUpsert:
			ws.reconciler.Confirm(*o.Assignment, revisions[o.Key])
		case models.OperationDelete:
			ws.reconciler.ConfirmDelete(o.Key, revisions[o.Key])
		}
	}
	ws.mu.Unlock()

	s.report(ctx, ws.key, date, teacherID, result.Outcomes)
	s.logger.Info("bulk substitution submit",
		zap.String("session", ws.key),
		zap.String("date", date),
		zap.Int64("teacher_id", teacherID),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return &dto.BulkSubmitResponse{Result: result, Workspace: s.snapshot(ws)}, nil
}

// Submissions lists logged writes for the displayed teacher. An empty date
// means the active date.
func (s *WorkspaceService) Submissions(ctx context.Context, session models.Session, query dto.SubmissionLogQuery) ([]models.SubmissionLog, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission log query")
	}
	if s.submissions == nil {
		return []models.SubmissionLog{}, nil
	}
	ws, err := s.workspaceFor(ctx, session)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	date := ws.date
	teacherID := ws.teacherID
	ws.mu.Unlock()

	if query.Date != "" {
		parsed, err := models.ParseDate(query.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
		}
		date = parsed
	}
	return s.submissions.List(ctx, models.SubmissionLogFilter{Date: date, OriginalTeacherID: teacherID, Limit: query.Limit})
}

// checkActiveCellLocked verifies that key is a grid cell on the active date
// and that the date is not a holiday.
func (s *WorkspaceService) checkActiveCellLocked(ws *workspace, key models.CellKey) error {
	if ws.teacherID == 0 {
		return appErrors.ErrNoTeacherSelected
	}
	if !ws.build.Grid.Has(key.Day, key.PeriodID) {
		return appErrors.Clone(appErrors.ErrInvalidSelection, "unknown cell")
	}
	if day, ok := ws.activeDay(); !ok || day != key.Day {
		return appErrors.Clone(appErrors.ErrInvalidSelection,
			fmt.Sprintf("cell %s is not on the active date %s", key, models.FormatDate(ws.date)))
	}
	if holiday, ok := ws.holidays.On(models.FormatDate(ws.date)); ok {
		return holidayError(holiday)
	}
	return nil
}

// prepareUpsertLocked validates a cell for submission and completes its
// payload from the grid.
func (s *WorkspaceService) prepareUpsertLocked(ws *workspace, key models.CellKey) (models.SubstitutionAssignment, error) {
	pending, hasPending := ws.reconciler.Pending(key)
	entries := ws.build.Grid.Cell(key.Day, key.PeriodID)
	if len(entries) == 0 {
		return pending, appErrors.Clone(appErrors.ErrInvalidSelection, "Invalid selection: no class is scheduled in this period")
	}
	if !hasPending || pending.TeacherID == 0 {
		return pending, appErrors.ErrNoSubstitute
	}
	if holiday, ok := ws.holidays.On(ws.reconciler.Date()); ok {
		return pending, holidayError(holiday)
	}
	classID, subjectID, ok := deriveClassSubject(entries)
	if !ok {
		return pending, appErrors.ErrIncompleteCell
	}
	pending.Date = ws.reconciler.Date()
	pending.Day = key.Day
	pending.PeriodID = key.PeriodID
	pending.ClassID = classID
	pending.SubjectID = subjectID
	pending.OriginalTeacherID = ws.teacherID
	if pending.TeacherName == "" {
		pending.TeacherName = ws.teacherName(pending.TeacherID)
	}
	return pending, nil
}

func (s *WorkspaceService) upsertAssignment(ctx context.Context, key models.CellKey, a models.SubstitutionAssignment) (models.CellOutcome, error) {
	outcome := models.CellOutcome{Key: key, Operation: models.OperationUpsert}
	saved, err := s.upstream.UpsertSubstitution(ctx, a)
	if err != nil {
		s.logger.Warn("substitution upsert failed", zap.String("cell", key.String()), zap.String("date", a.Date), zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Assignment = &a
		outcome.Code = appErrors.ErrUpstream.Code
		outcome.Message = err.Error()
		return outcome, err
	}
	merged := *saved
	if merged.TeacherName == "" {
		merged.TeacherName = a.TeacherName
	}
	if merged.Date == "" {
		merged.Date = a.Date
	}
	outcome.Outcome = models.OutcomeSucceeded
	outcome.Assignment = &merged
	return outcome, nil
}

// deleteAssignment reports an ERP not-found as ALREADY_GONE; the returned
// error is the raw upstream error in every failing case.
func (s *WorkspaceService) deleteAssignment(ctx context.Context, key models.CellKey, id int64, a models.SubstitutionAssignment) (models.CellOutcome, error) {
	outcome := models.CellOutcome{Key: key, Operation: models.OperationDelete, Assignment: &a}
	err := s.upstream.DeleteSubstitution(ctx, id)
	switch {
	case err == nil:
		outcome.Outcome = models.OutcomeSucceeded
	case erpclient.IsNotFound(err):
		outcome.Outcome = models.OutcomeAlreadyGone
		outcome.Message = "substitution already removed"
	default:
		s.logger.Warn("substitution delete failed", zap.String("cell", key.String()), zap.Int64("id", id), zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Code = appErrors.ErrUpstream.Code
		outcome.Message = err.Error()
	}
	return outcome, err
}

func (s *WorkspaceService) report(ctx context.Context, sessionKey, date string, teacherID int64, outcomes []models.CellOutcome) {
	if s.metrics != nil {
		for _, o := range outcomes {
			s.metrics.RecordReconcileOperation(o.Operation, o.Outcome)
		}
	}
	if s.submissions != nil && len(outcomes) > 0 {
		s.submissions.Record(ctx, SubmissionAttempt{
			SessionKey:        sessionKey,
			Date:              date,
			OriginalTeacherID: teacherID,
			Outcomes:          outcomes,
		})
	}
}

func (s *WorkspaceService) snapshot(ws *workspace) *dto.WorkspaceSnapshot {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	week := WeekOf(ws.date)
	dates := week.Dates()
	snap := &dto.WorkspaceSnapshot{
		TeacherID: ws.teacherID,
		Date:      models.FormatDate(ws.date),
		Week:      dto.WeekView{Monday: models.FormatDate(week.Monday), Dates: dates},
		Teachers:  ws.teachers,
		Periods:   ws.periods,
		Holidays:  []models.Holiday{},
		Grid:      ws.build.Grid,
		Workload:  AggregateWorkload(ws.build.Grid, ws.periods, week, ws.holidays),
		Cells:     ws.reconciler.Snapshot(),
		Dropped:   nonNil(ws.build.Dropped),
		Converged: ws.reconciler.Converged(),
	}
	if day, ok := ws.activeDay(); ok {
		snap.Day = day
	}
	for _, t := range ws.teachers {
		if t.UserID == ws.teacherID {
			teacher := t
			snap.Teacher = &teacher
			break
		}
	}
	for _, day := range models.Days {
		if h, ok := ws.holidays.On(dates[day]); ok {
			snap.Holidays = append(snap.Holidays, h)
		}
	}
	if ws.selected != nil {
		snap.Selection = &dto.SelectionView{
			Key:      ws.selected.String(),
			Day:      ws.selected.Day,
			PeriodID: ws.selected.PeriodID,
			Date:     dates[ws.selected.Day],
		}
	}
	return snap
}

func holidayError(h models.Holiday) *appErrors.Error {
	msg := fmt.Sprintf("%s is a holiday", h.Date)
	if h.Description != "" {
		msg = fmt.Sprintf("%s is a holiday (%s)", h.Date, h.Description)
	}
	return appErrors.Clone(appErrors.ErrHolidaySelected, msg)
}

func rosterHas(teachers []models.Teacher, id int64) bool {
	for _, t := range teachers {
		if t.UserID == id {
			return true
		}
	}
	return false
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
