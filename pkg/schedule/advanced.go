package schedule

import (
	"bytes"
	"strconv"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/util"
	"github.com/pkg/errors"
)

// MaxAttempts bounds the candidate search so configs that can never match terminate.
const MaxAttempts = 10000

// ErrNoCandidate is returned when no run time passes the filters within MaxAttempts.
var ErrNoCandidate = errors.New("schedule: no matching run time within attempt bound")

// Interval units
const (
	UnitHour   = "hour"
	UnitMinute = "min"
)

// AdvancedConfig 高级调度配置
type AdvancedConfig struct {
	Interval          int        `json:"interval" validate:"min=1"`
	IntervalUnit      string     `json:"intervalUnit" validate:"oneof=hour min"`
	StartTime         string     `json:"startTime" validate:"hhmm"`
	RunBetweenEnabled bool       `json:"runBetweenEnabled"`
	RunBetweenStart   string     `json:"runBetweenStart,omitempty"`
	RunBetweenEnd     string     `json:"runBetweenEnd,omitempty"`
	WeekDays          []int      `json:"weekDays" validate:"min=1,dive,min=0,max=6"`
	MonthDays         []MonthDay `json:"monthDays,omitempty"`
}

// MonthDay is a day of month 1..31 or the last day of the month.
// In JSON it is a number or the string "last".
type MonthDay struct {
	Day  int
	Last bool
}

// LastDay matches the final calendar day of any month.
var LastDay = MonthDay{Last: true}

// Day 构造普通日期
func Day(d int) MonthDay {
	return MonthDay{Day: d}
}

func (m MonthDay) MarshalJSON() ([]byte, error) {
	if m.Last {
		return []byte(`"last"`), nil
	}
	return []byte(strconv.Itoa(m.Day)), nil
}

func (m *MonthDay) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if string(b) == "last" {
		*m = LastDay
		return nil
	}
	d, err := strconv.Atoi(string(b))
	if err != nil {
		return errors.Errorf("schedule: invalid month day %q", string(b))
	}
	*m = MonthDay{Day: d}
	return nil
}

func (m MonthDay) matches(t time.Time) bool {
	if m.Last {
		return t.Day() == util.GetLastDayOfMonth(t)
	}
	return t.Day() == m.Day
}

// Step returns the interval as a duration.
func (a *AdvancedConfig) Step() time.Duration {
	switch a.IntervalUnit {
	case UnitHour:
		return time.Duration(a.Interval) * time.Hour
	case UnitMinute:
		return time.Duration(a.Interval) * time.Minute
	}
	return 0
}

func (a *AdvancedConfig) matchesDay(t time.Time) bool {
	weekday := int(t.Weekday())
	found := false
	for _, d := range a.WeekDays {
		if d == weekday {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if len(a.MonthDays) == 0 {
		return true
	}
	for _, m := range a.MonthDays {
		if m.matches(t) {
			return true
		}
	}
	return false
}

func (a *AdvancedConfig) inWindow(t time.Time) bool {
	if !a.RunBetweenEnabled {
		return true
	}
	start, err1 := minutesOfDay(a.RunBetweenStart)
	end, err2 := minutesOfDay(a.RunBetweenEnd)
	if err1 != nil || err2 != nil {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if start <= end {
		return m >= start && m <= end
	}
	// window crosses midnight
	return m >= start || m <= end
}

// dayStartMinute is where the search resumes on a new day. Normally the start time; when
// the run-between window opens earlier in the day, the first slot of the start-time grid
// at or after the window opening, so an allowed day's window is never skipped.
func (a *AdvancedConfig) dayStartMinute(startMin int, step time.Duration) int {
	if !a.RunBetweenEnabled {
		return startMin
	}
	winStart, err1 := minutesOfDay(a.RunBetweenStart)
	winEnd, err2 := minutesOfDay(a.RunBetweenEnd)
	if err1 != nil || err2 != nil {
		return startMin
	}
	earliest := winStart
	if winStart > winEnd {
		// window crosses midnight, so it is open from 00:00
		earliest = 0
	}
	if earliest >= startMin {
		return startMin
	}
	stepMin := int(step / time.Minute)
	// truncation rounds the negative quotient up: first grid slot >= earliest
	k := (earliest - startMin) / stepMin
	return startMin + k*stepMin
}

// NextAdvanced searches for the first run after from.
//
// The search starts at today's start time (no prior run) or lastRun+interval, moved past
// from on the interval grid. A candidate on a day excluded by weekDays/monthDays jumps to
// the next day (see dayStartMinute); a candidate outside the run-between window moves one interval.
// NextAdvanced 计算高级调度的下次运行时间，超过 MaxAttempts 次尝试返回 ErrNoCandidate
func (c *Calculator) NextAdvanced(a *AdvancedConfig, lastRun *time.Time, from time.Time) (time.Time, error) {
	step := a.Step()
	if step <= 0 {
		return time.Time{}, errors.Errorf("schedule: invalid interval %d %s", a.Interval, a.IntervalUnit)
	}
	startMin, err := minutesOfDay(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	startH, startM := startMin/60, startMin%60
	dayMin := a.dayStartMinute(startMin, step)

	from = from.In(c.loc)
	var candidate time.Time
	if lastRun == nil || lastRun.IsZero() {
		candidate = time.Date(from.Year(), from.Month(), from.Day(), startH, startM, 0, 0, c.loc)
	} else {
		candidate = lastRun.In(c.loc).Add(step)
	}
	candidate = advancePast(candidate, from, step)

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if !a.matchesDay(candidate) {
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, dayMin/60, dayMin%60, 0, 0, c.loc)
			continue
		}
		if !a.inWindow(candidate) {
			candidate = candidate.Add(step)
			continue
		}
		return candidate, nil
	}
	return time.Time{}, ErrNoCandidate
}

// advancePast moves t forward by whole steps until it is strictly after from.
func advancePast(t, from time.Time, step time.Duration) time.Time {
	if t.After(from) {
		return t
	}
	n := from.Sub(t)/step + 1
	return t.Add(n * step)
}

func minutesOfDay(hhmm string) (int, error) {
	if !hhmmPattern.MatchString(hhmm) {
		return 0, errors.Errorf("schedule: invalid time %q, want HH:mm", hhmm)
	}
	h, _ := strconv.Atoi(hhmm[:2])
	m, _ := strconv.Atoi(hhmm[3:])
	return h*60 + m, nil
}
