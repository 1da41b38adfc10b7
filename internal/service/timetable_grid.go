package service

import "github.com/noah-isme/sma-substitution-api/internal/models"

// GridBuild is the result of placing a teacher's timetable onto the grid.
type GridBuild struct {
	Grid    models.Grid
	Dropped []models.DroppedRecord
}

// BuildGrid places timetable records on a day × period grid. Every
// (day, period) pair of the working week exists in the result, possibly as
// an empty slice. Records with an unknown day or period are returned in
// Dropped rather than failing the build.
func BuildGrid(records []models.TimetableRecord, periods []models.Period) GridBuild {
	known := make(map[int64]struct{}, len(periods))
	grid := make(models.Grid, len(models.Days))
	for _, day := range models.Days {
		cells := make(map[int64][]models.TimetableEntry, len(periods))
		for _, p := range periods {
			cells[p.ID] = []models.TimetableEntry{}
			known[p.ID] = struct{}{}
		}
		grid[day] = cells
	}

	var dropped []models.DroppedRecord
	for _, rec := range records {
		day, ok := models.ParseDay(rec.Day)
		if !ok {
			dropped = append(dropped, models.DroppedRecord{Record: rec, Reason: models.DropUnknownDay})
			continue
		}
		if _, ok := known[rec.PeriodID]; !ok {
			dropped = append(dropped, models.DroppedRecord{Record: rec, Reason: models.DropUnknownPeriod})
			continue
		}
		grid[day][rec.PeriodID] = append(grid[day][rec.PeriodID], models.TimetableEntry{
			Day:         day,
			PeriodID:    rec.PeriodID,
			ClassID:     rec.ClassID,
			ClassName:   rec.ClassName,
			SubjectID:   rec.SubjectID,
			SubjectName: rec.SubjectName,
			TeacherID:   rec.TeacherID,
		})
	}

	return GridBuild{Grid: grid, Dropped: dropped}
}

// deriveClassSubject scans the entries of a cell until both a class id and a
// subject id have been found. Combined sections sometimes spread the two
// across different entries.
func deriveClassSubject(entries []models.TimetableEntry) (classID, subjectID int64, ok bool) {
	for _, e := range entries {
		if classID == 0 && e.ClassID > 0 {
			classID = e.ClassID
		}
		if subjectID == 0 && e.SubjectID > 0 {
			subjectID = e.SubjectID
		}
		if classID > 0 && subjectID > 0 {
			return classID, subjectID, true
		}
	}
	return classID, subjectID, false
}
