package schedule

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/haierkeys/fast-db-backup-service/pkg/code"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmmPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateAdvancedConfig rejects configs the search could never evaluate:
// interval < 1, unknown unit, empty weekDays, malformed HH:mm values, month days outside 1..31.
// ValidateAdvancedConfig 校验高级调度配置
func ValidateAdvancedConfig(a *AdvancedConfig) error {
	if a == nil {
		return code.ErrorInvalidScheduleConfig.WithDetails("advanced schedule config is required")
	}
	if err := getValidator().Struct(a); err != nil {
		return code.ErrorInvalidScheduleConfig.WithDetails(err.Error())
	}
	if a.RunBetweenEnabled {
		if !hhmmPattern.MatchString(a.RunBetweenStart) || !hhmmPattern.MatchString(a.RunBetweenEnd) {
			return code.ErrorInvalidScheduleConfig.WithDetails("runBetweenStart and runBetweenEnd must be HH:mm")
		}
	}
	for _, m := range a.MonthDays {
		if !m.Last && (m.Day < 1 || m.Day > 31) {
			return code.ErrorInvalidScheduleConfig.WithDetails("month day out of range: " + strconv.Itoa(m.Day))
		}
	}
	return nil
}
