// Package schedule computes backup run times: fixed cron presets, custom cron
// expressions and the advanced interval/day/window schedule.
package schedule

import (
	"time"
	_ "time/tzdata"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Schedule types
const (
	TypeManual   = "manual"
	TypeHourly   = "hourly"
	TypeDaily    = "daily"
	TypeWeekly   = "weekly"
	TypeMonthly  = "monthly"
	TypeCustom   = "custom"
	TypeAdvanced = "advanced"
)

// DefaultTimezone is the zone fixed schedules are evaluated in.
const DefaultTimezone = "Europe/Istanbul"

// Presets maps fixed schedule types to their cron expressions.
// Presets 固定调度类型对应的 cron 表达式
var Presets = map[string]string{
	TypeHourly:  "0 * * * *",
	TypeDaily:   "0 2 * * *",
	TypeWeekly:  "0 2 * * 0",
	TypeMonthly: "0 2 1 * *",
}

// ErrManual is returned for manual jobs, which never have a next run.
var ErrManual = errors.New("schedule: manual jobs are not scheduled")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parser returns the 5-field parser shared by validation and the live scheduler.
func Parser() cron.Parser {
	return parser
}

// IsValidType 判断调度类型是否合法
func IsValidType(t string) bool {
	switch t {
	case TypeManual, TypeHourly, TypeDaily, TypeWeekly, TypeMonthly, TypeCustom, TypeAdvanced:
		return true
	}
	return false
}

// IsFixed reports whether t is driven by a cron expression.
func IsFixed(t string) bool {
	_, preset := Presets[t]
	return preset || t == TypeCustom
}

// ResolveCronExpression returns the cron expression for a fixed schedule type.
// ResolveCronExpression 解析固定调度类型的 cron 表达式
func ResolveCronExpression(scheduleType, cronExpression string) (string, error) {
	if expr, ok := Presets[scheduleType]; ok {
		return expr, nil
	}
	if scheduleType == TypeCustom {
		if err := ValidateCron(cronExpression); err != nil {
			return "", err
		}
		return cronExpression, nil
	}
	return "", code.ErrorInvalidScheduleConfig.WithDetails("schedule type " + scheduleType + " has no cron expression")
}

// ValidateCron 校验 cron 表达式
func ValidateCron(expr string) error {
	if expr == "" {
		return code.ErrorInvalidCronExpression.WithDetails("cron expression is required")
	}
	if _, err := parser.Parse(expr); err != nil {
		return code.ErrorInvalidCronExpression.WithDetails(err.Error())
	}
	return nil
}

// Calculator evaluates schedules in one location.
// Calculator 在固定时区内计算调度时间
type Calculator struct {
	loc *time.Location
}

// NewCalculator loads tz, falling back to DefaultTimezone when tz is empty.
func NewCalculator(tz string) (*Calculator, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrap(err, "schedule: load location")
	}
	return &Calculator{loc: loc}, nil
}

// Location 返回计算所用的时区
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// NextCron returns the first occurrence of expr strictly after from.
func (c *Calculator) NextCron(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, code.ErrorInvalidCronExpression.WithDetails(err.Error())
	}
	next := sched.Next(from.In(c.loc))
	if next.IsZero() {
		return time.Time{}, ErrNoCandidate
	}
	return next, nil
}

// Next dispatches on the schedule type.
// Next 根据调度类型计算下次运行时间
func (c *Calculator) Next(scheduleType, cronExpression string, advanced *AdvancedConfig, lastRun *time.Time, from time.Time) (time.Time, error) {
	switch {
	case scheduleType == TypeManual:
		return time.Time{}, ErrManual
	case scheduleType == TypeAdvanced:
		if advanced == nil {
			return time.Time{}, code.ErrorInvalidScheduleConfig.WithDetails("advanced schedule config is required")
		}
		return c.NextAdvanced(advanced, lastRun, from)
	case IsFixed(scheduleType):
		expr, err := ResolveCronExpression(scheduleType, cronExpression)
		if err != nil {
			return time.Time{}, err
		}
		return c.NextCron(expr, from)
	}
	return time.Time{}, code.ErrorInvalidScheduleConfig.WithDetails("unknown schedule type " + scheduleType)
}
