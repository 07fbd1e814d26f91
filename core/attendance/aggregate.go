package attendance

import (
	"context"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/student"
)

// Aggregations are pure: they never mutate their inputs, hold no state, and turn every
// zero denominator into a 0 rate. They are safe to call concurrently.

type (
	// ClassRollup summarises one class on one day (or over a period).
	ClassRollup struct {
		ClassCode      string `json:"class_code"`
		TotalStudents  int    `json:"total_students"`
		PresentCount   int    `json:"present_count"`
		AbsentCount    int    `json:"absent_count"`
		LateCount      int    `json:"late_count"`
		FlowerCount    int    `json:"flower_count"`
		AttendanceRate int    `json:"attendance_rate"` // present / total students
	}

	// ClassSnapshot is the class rollup of the most recent day holding records.
	ClassSnapshot struct {
		Date    Day                    `json:"date"`
		Classes map[string]ClassRollup `json:"classes"`
	}

	// DayReport summarises every record of one day.
	DayReport struct {
		Date            Day `json:"date"`
		Total           int `json:"total"`
		Present         int `json:"present"`
		Absent          int `json:"absent"`
		Late            int `json:"late"`
		FlowerOfferings int `json:"flower_offerings"`
		AttendanceRate  int `json:"attendance_rate"` // (present + late) / total
	}

	HistoryEntry struct {
		Date           Day            `json:"date"`
		Status         Status         `json:"status"`
		Reason         string         `json:"reason"`
		FlowerOffering FlowerOffering `json:"flower_offering"`
	}

	Counts struct {
		Total           int `json:"total"`
		Present         int `json:"present"`
		Absent          int `json:"absent"`
		Late            int `json:"late"`
		FlowerOfferings int `json:"flower_offerings"`
		AttendanceRate  int `json:"attendance_rate"` // present / total
	}

	StudentSummary struct {
		StudentRef string         `json:"student_ref"`
		Entries    []HistoryEntry `json:"entries"`
		Summary    Counts         `json:"summary"`
	}

	TrendPoint struct {
		Date           Day `json:"date"`
		Present        int `json:"present"`
		Absent         int `json:"absent"`
		Flowers        int `json:"flowers"`
		AttendanceRate int `json:"attendance_rate"` // present / (present + absent)
	}

	// PeriodRate is a class's attendance against the class days it was expected to meet.
	PeriodRate struct {
		ClassCode         string `json:"class_code"`
		TotalStudents     int    `json:"total_students"`
		ExpectedClassDays int    `json:"expected_class_days"`
		PresentCount      int    `json:"present_count"`
		AbsentCount       int    `json:"absent_count"`
		LateCount         int    `json:"late_count"`
		AttendanceRate    int    `json:"attendance_rate"` // present / (total students * expected days)
	}

	// ClassDayCounter tells how many class meetings a period holds.
	ClassDayCounter interface {
		ExpectedClassDays(start, end Day) int
	}
)

// rosterIndex maps student refs to roster entries; nil when roster is nil (no restriction).
type rosterIndex map[string]student.Student

func indexRoster(roster []student.Student) rosterIndex {
	if roster == nil {
		return nil
	}
	idx := make(rosterIndex, len(roster))
	for _, s := range roster {
		idx[s.Ref] = s
	}
	return idx
}

// admits reports whether ref is on the roster (always true without a roster).
func (idx rosterIndex) admits(ref string) bool {
	if idx == nil {
		return true
	}
	_, ok := idx[ref]
	return ok
}

// classCodes returns each class of roster with its head count.
func classCodes(roster []student.Student) map[string]int {
	classes := make(map[string]int)
	for _, s := range roster {
		classes[s.ClassCode]++
	}
	return classes
}

// DailyClassRollup rolls up the records of day per roster class.
// Every class present in the roster appears, even without records.
func DailyClassRollup(records []Record, roster []student.Student, day Day) map[string]ClassRollup {
	idx := indexRoster(roster)
	out := make(map[string]ClassRollup)
	for code, total := range classCodes(roster) {
		out[code] = ClassRollup{ClassCode: code, TotalStudents: total}
	}

	for _, rec := range records {
		if !rec.Day.Equal(day) {
			continue
		}
		s, ok := idx[rec.StudentRef]
		if !ok {
			continue
		}
		roll := out[s.ClassCode]
		switch rec.Status {
		case StatusPresent:
			roll.PresentCount++
		case StatusAbsent:
			roll.AbsentCount++
		case StatusLate:
			roll.LateCount++
		}
		if rec.Flowers.Brought {
			roll.FlowerCount++
		}
		out[s.ClassCode] = roll
	}

	for code, roll := range out {
		roll.AttendanceRate = core.Percent(roll.PresentCount, roll.TotalStudents)
		out[code] = roll
	}
	return out
}

// RangeReport returns one DayReport per distinct day of records within [start, end], oldest first.
// Late marks count towards the rate here, unlike DailyClassRollup.
func RangeReport(records []Record, roster []student.Student, start, end Day) []DayReport {
	idx := indexRoster(roster)
	byDay := make(map[Day]*DayReport)
	for _, rec := range records {
		if !rec.Day.Within(start, end) || !idx.admits(rec.StudentRef) {
			continue
		}
		rep, ok := byDay[rec.Day]
		if !ok {
			rep = &DayReport{Date: rec.Day}
			byDay[rec.Day] = rep
		}
		rep.Total++
		switch rec.Status {
		case StatusPresent:
			rep.Present++
		case StatusAbsent:
			rep.Absent++
		case StatusLate:
			rep.Late++
		}
		if rec.Flowers.Brought {
			rep.FlowerOfferings++
		}
	}

	out := make([]DayReport, 0, len(byDay))
	for _, rep := range byDay {
		rep.AttendanceRate = core.Percent(rep.Present+rep.Late, rep.Total)
		out = append(out, *rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// StudentHistory returns the day-by-day marks of studentRef within [start, end] and their totals.
func StudentHistory(records []Record, studentRef string, start, end Day) StudentSummary {
	sum := StudentSummary{StudentRef: studentRef, Entries: make([]HistoryEntry, 0)}
	for _, rec := range records {
		if rec.StudentRef != studentRef || !rec.Day.Within(start, end) {
			continue
		}
		sum.Entries = append(sum.Entries, HistoryEntry{
			Date:           rec.Day,
			Status:         rec.Status,
			Reason:         rec.Reason,
			FlowerOffering: rec.Flowers,
		})
		sum.Summary.Total++
		switch rec.Status {
		case StatusPresent:
			sum.Summary.Present++
		case StatusAbsent:
			sum.Summary.Absent++
		case StatusLate:
			sum.Summary.Late++
		}
		if rec.Flowers.Brought {
			sum.Summary.FlowerOfferings++
		}
	}
	sort.SliceStable(sum.Entries, func(i, j int) bool { return sum.Entries[i].Date.Before(sum.Entries[j].Date) })
	sum.Summary.AttendanceRate = core.Percent(sum.Summary.Present, sum.Summary.Total)
	return sum
}

// LatestDayClassSnapshot rolls up the classes on the most recent day holding any record.
// ok is false when there are no records at all, so "no data" never reads as "0% attendance".
func LatestDayClassSnapshot(records []Record, roster []student.Student) (snap ClassSnapshot, ok bool) {
	day, ok := LatestOf(records)
	if !ok {
		return ClassSnapshot{}, false
	}
	return ClassSnapshot{Date: day, Classes: DailyClassRollup(records, roster, day)}, true
}

// LatestMonthTrend returns one point per distinct day in the calendar month of the latest record,
// optionally restricted to the students of classCode.
func LatestMonthTrend(records []Record, roster []student.Student, classCode string) []TrendPoint {
	latest, ok := LatestOf(records)
	if !ok {
		return []TrendPoint{}
	}

	idx := indexRoster(roster)
	byDay := make(map[Day]*TrendPoint)
	for _, rec := range records {
		if !rec.Day.SameMonth(latest) || !idx.admits(rec.StudentRef) {
			continue
		}
		if classCode != "" {
			if s, ok := idx[rec.StudentRef]; !ok || s.ClassCode != classCode {
				continue
			}
		}
		pt, ok := byDay[rec.Day]
		if !ok {
			pt = &TrendPoint{Date: rec.Day}
			byDay[rec.Day] = pt
		}
		switch rec.Status {
		case StatusPresent:
			pt.Present++
		case StatusAbsent:
			pt.Absent++
		}
		if rec.Flowers.Brought {
			pt.Flowers++
		}
	}

	out := make([]TrendPoint, 0, len(byDay))
	for _, pt := range byDay {
		pt.AttendanceRate = core.Percent(pt.Present, pt.Present+pt.Absent)
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CountExpectedClassDays counts the Sundays in [start, end].
func CountExpectedClassDays(start, end Day) int {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	first := start.AddDays((int(time.Sunday) - int(start.Weekday()) + 7) % 7)
	if first.After(end) {
		return 0
	}
	days := int(end.Time().Sub(first.Time()).Hours() / 24)
	return days/7 + 1
}

// PeriodClassRates rates every roster class over [start, end] against the class days of cal.
// Zero bounds default to the earliest/latest record day.
func PeriodClassRates(records []Record, roster []student.Student, start, end Day, cal ClassDayCounter) map[string]PeriodRate {
	start, end = boundsOf(records, start, end)
	var expected int
	if cal != nil {
		expected = cal.ExpectedClassDays(start, end)
	} else {
		expected = CountExpectedClassDays(start, end)
	}

	idx := indexRoster(roster)
	out := make(map[string]PeriodRate)
	for code, total := range classCodes(roster) {
		out[code] = PeriodRate{ClassCode: code, TotalStudents: total, ExpectedClassDays: expected}
	}
	for _, rec := range records {
		if !rec.Day.Within(start, end) {
			continue
		}
		s, ok := idx[rec.StudentRef]
		if !ok {
			continue
		}
		pr := out[s.ClassCode]
		switch rec.Status {
		case StatusPresent:
			pr.PresentCount++
		case StatusAbsent:
			pr.AbsentCount++
		case StatusLate:
			pr.LateCount++
		}
		out[s.ClassCode] = pr
	}
	for code, pr := range out {
		pr.AttendanceRate = core.Percent(pr.PresentCount, pr.TotalStudents*pr.ExpectedClassDays)
		out[code] = pr
	}
	return out
}

// ClassStudentSummaries builds the StudentHistory of every roster student concurrently.
// Results are ordered by student ref.
func ClassStudentSummaries(ctx context.Context, records []Record, roster []student.Student, start, end Day) ([]StudentSummary, error) {
	byStudent := make(map[string][]Record, len(roster))
	for _, rec := range records {
		byStudent[rec.StudentRef] = append(byStudent[rec.StudentRef], rec)
	}

	refs := student.Refs(roster)
	sort.Strings(refs)
	out := make([]StudentSummary, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = StudentHistory(byStudent[ref], ref, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func boundsOf(records []Record, start, end Day) (Day, Day) {
	if !start.IsZero() && !end.IsZero() {
		return start, end
	}
	var first, last Day
	for _, rec := range records {
		if first.IsZero() || rec.Day.Before(first) {
			first = rec.Day
		}
		if last.IsZero() || rec.Day.After(last) {
			last = rec.Day
		}
	}
	if start.IsZero() {
		start = first
	}
	if end.IsZero() {
		end = last
	}
	return start, end
}
