package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	"workflow/backend/internal/model"
	apperrors "workflow/backend/pkg/errors"
)

// ── Timetable file parser ──────────────────────────────────
//
// Turns an uploaded schedule file into timetable slots:
//   - .ics  VEVENTs; DTSTART gives weekday and start, DTEND or DURATION the end.
//     A weekly RRULE with BYDAY yields one slot per listed day.
//   - .xlsx first sheet, header row with day/start/end/subject/free columns.
//   - .csv  same columns as xlsx.
// Identical slots are merged. Output is not validated; callers run
// model.ValidateSlots before persisting.
// ─────────────────────────────────────────────────────────────

var (
	ErrUnsupportedFormat  = apperrors.New(apperrors.ErrValidation, "unsupported timetable format")
	ErrMalformedTimetable = apperrors.New(apperrors.ErrValidation, "timetable file could not be read")
	ErrMissingColumns     = apperrors.New(apperrors.ErrValidation, "timetable sheet needs day, start and end columns")
)

// SupportedTimetableExt reports whether fileName has a parseable extension.
func SupportedTimetableExt(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".ics", ".xlsx", ".csv":
		return true
	}
	return false
}

// ParseTimetableFile dispatches on the file extension. Calendar times are
// read in loc unless the event carries its own zone.
func ParseTimetableFile(fileName string, data []byte, loc *time.Location) ([]model.TimeSlot, error) {
	var (
		slots []model.TimeSlot
		err   error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".ics":
		slots, err = parseICS(bytes.NewReader(data), loc)
	case ".xlsx":
		slots, err = parseXLSX(bytes.NewReader(data))
	case ".csv":
		slots, err = parseCSV(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return mergeSlots(slots), nil
}

// ═══════════════════════════════════════════════════════════
// iCalendar
// ═══════════════════════════════════════════════════════════

func parseICS(r io.Reader, loc *time.Location) ([]model.TimeSlot, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTimetable, err)
	}

	var slots []model.TimeSlot
	for _, evt := range cal.Events() {
		slots = append(slots, parseVEvent(evt, loc)...)
	}
	return slots, nil
}

// parseVEvent returns nothing for events without a summary, a start or an end.
func parseVEvent(evt *ics.VEvent, loc *time.Location) []model.TimeSlot {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return nil
	}

	start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil
	}
	end, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		prop := evt.GetProperty(ics.ComponentProperty(ics.PropertyDuration))
		if prop == nil {
			return nil
		}
		d, err := parseICSDuration(prop.Value)
		if err != nil {
			return nil
		}
		end = start.Add(d)
	}

	days := []string{model.WeekdayName(start.Weekday())}
	if rule := evt.GetProperty(ics.ComponentPropertyRrule); rule != nil {
		if byDay := weeklyByDay(rule.Value); len(byDay) > 0 {
			days = byDay
		}
	}

	slots := make([]model.TimeSlot, 0, len(days))
	for _, day := range days {
		slots = append(slots, model.TimeSlot{
			DayOfWeek: day,
			StartTime: start.Format("15:04"),
			EndTime:   end.Format("15:04"),
			Subject:   strings.TrimSpace(summary.Value),
		})
	}
	return slots
}

var icsDayCodes = map[string]string{
	"MO": "Monday", "TU": "Tuesday", "WE": "Wednesday", "TH": "Thursday",
	"FR": "Friday", "SA": "Saturday", "SU": "Sunday",
}

// weeklyByDay extracts BYDAY from a FREQ=WEEKLY rule.
func weeklyByDay(rrule string) []string {
	var (
		weekly bool
		days   []string
	)
	for _, part := range strings.Split(rrule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			weekly = strings.EqualFold(kv[1], "WEEKLY")
		case "BYDAY":
			for _, code := range strings.Split(kv[1], ",") {
				code = strings.ToUpper(strings.TrimSpace(code))
				// ordinal prefixes such as 1MO only appear in monthly rules
				if len(code) > 2 {
					code = code[len(code)-2:]
				}
				if day, ok := icsDayCodes[code]; ok {
					days = append(days, day)
				}
			}
		}
	}
	if !weekly {
		return nil
	}
	return days
}

// parseICSDuration handles the day and time parts of an RFC 5545 duration, e.g. PT1H30M.
func parseICSDuration(v string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	s = strings.TrimPrefix(s, "+")
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var (
		total  time.Duration
		inTime bool
		num    strings.Builder
	)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		num.Reset()
		switch {
		case r == 'W':
			total += time.Duration(n) * 7 * 24 * time.Hour
		case r == 'D':
			total += time.Duration(n) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
	}
	if num.Len() > 0 || total <= 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return total, nil
}

// parseICSDateTime reads a date-time property. UTC values are converted to
// loc, TZID values keep their wall clock converted to loc, floating values
// are taken as loc.
func parseICSDateTime(evt *ics.VEvent, name ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(name)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", name)
	}

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, prop.Value)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if zone, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", prop.Value)
}

// ═══════════════════════════════════════════════════════════
// Spreadsheets
// ═══════════════════════════════════════════════════════════

func parseXLSX(r io.Reader) ([]model.TimeSlot, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTimetable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrMalformedTimetable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTimetable, err)
	}
	return parseRows(rows)
}

func parseCSV(r io.Reader) ([]model.TimeSlot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTimetable, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return parseRows(rows)
}

type column int

const (
	colDay column = iota
	colStart
	colEnd
	colSubject
	colFree
)

// headerAliases maps a normalized header cell to its column.
var headerAliases = map[string]column{
	"day": colDay, "dayofweek": colDay, "weekday": colDay, "วัน": colDay,
	"start": colStart, "starttime": colStart, "from": colStart, "เริ่ม": colStart, "เวลาเริ่ม": colStart,
	"end": colEnd, "endtime": colEnd, "to": colEnd, "สิ้นสุด": colEnd, "เวลาสิ้นสุด": colEnd,
	"subject": colSubject, "course": colSubject, "วิชา": colSubject, "รายวิชา": colSubject,
	"free": colFree, "isfree": colFree, "ว่าง": colFree,
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// parseRows reads the first row as header and every non-blank row after it as a slot.
func parseRows(rows [][]string) ([]model.TimeSlot, error) {
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}

	index := map[column]int{}
	for i, cell := range rows[0] {
		if c, ok := headerAliases[normalizeHeader(cell)]; ok {
			if _, seen := index[c]; !seen {
				index[c] = i
			}
		}
	}
	for _, c := range []column{colDay, colStart, colEnd} {
		if _, ok := index[c]; !ok {
			return nil, ErrMissingColumns
		}
	}

	get := func(row []string, c column) string {
		i, ok := index[c]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	slots := make([]model.TimeSlot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		subject := get(row, colSubject)
		free := subject == ""
		if _, ok := index[colFree]; ok && get(row, colFree) != "" {
			free = parseFree(get(row, colFree))
		}
		slots = append(slots, model.TimeSlot{
			DayOfWeek: canonicalDay(get(row, colDay)),
			StartTime: spreadsheetClock(get(row, colStart)),
			EndTime:   spreadsheetClock(get(row, colEnd)),
			Subject:   subject,
			IsFree:    free,
		})
	}
	return slots, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseFree(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1", "free", "ว่าง":
		return true
	}
	return false
}

var thaiWeekdays = map[string]string{
	"จันทร์": "Monday", "อังคาร": "Tuesday", "พุธ": "Wednesday", "พฤหัสบดี": "Thursday",
	"พฤหัส": "Thursday", "ศุกร์": "Friday", "เสาร์": "Saturday", "อาทิตย์": "Sunday",
}

// canonicalDay resolves English names, three-letter abbreviations and Thai
// names. Anything else passes through so validation can report it.
func canonicalDay(v string) string {
	if i := model.WeekdayIndex(v); i >= 0 {
		return model.Weekdays[i]
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(v), "วัน")
	if day, ok := thaiWeekdays[trimmed]; ok {
		return day
	}
	if len(v) == 3 {
		for _, d := range model.Weekdays {
			if strings.EqualFold(d[:3], v) {
				return d
			}
		}
	}
	return v
}

// spreadsheetClock converts an unformatted Excel time (fraction of a day) to HH:MM.
func spreadsheetClock(v string) string {
	if _, err := model.ParseClock(v); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f >= 1 {
		return v
	}
	return model.FormatClock(int(math.Round(f * 24 * 60)))
}

// mergeSlots drops exact duplicates, keeping first-seen order.
func mergeSlots(slots []model.TimeSlot) []model.TimeSlot {
	type key struct {
		Day, Start, End, Subject string
		Free                     bool
	}
	seen := make(map[key]bool, len(slots))
	out := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		k := key{s.DayOfWeek, s.StartTime, s.EndTime, s.Subject, s.IsFree}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
