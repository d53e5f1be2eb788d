package dbcore

import (
	"regexp"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
)

var (
	hostPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,252}$`)
	userPattern     = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.@\\\-]{0,127}$`)
	databasePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_$\-]{0,127}$`)
)

// InvalidInputError reports a user supplied identifier that failed the allow-list.
// The value itself is not echoed.
// InvalidInputError 标识符未通过白名单校验
type InvalidInputError struct {
	Field string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Field + " contains characters that are not allowed"
}

func (e *InvalidInputError) Kind() code.Kind {
	return code.KindValidation
}

func (e *InvalidInputError) Unwrap() error {
	return code.ErrorInvalidInput
}

// ValidateHost 校验主机名
func ValidateHost(host string) error {
	if !hostPattern.MatchString(host) {
		return &InvalidInputError{Field: "host"}
	}
	return nil
}

// ValidateUsername 校验用户名，允许为空
func ValidateUsername(user string) error {
	if user != "" && !userPattern.MatchString(user) {
		return &InvalidInputError{Field: "username"}
	}
	return nil
}

// ValidateDatabase 校验数据库名
func ValidateDatabase(name string) error {
	if !databasePattern.MatchString(name) {
		return &InvalidInputError{Field: "database"}
	}
	return nil
}

// ValidateIdentifiers checks every identifier that reaches a command line or statement.
// The host is skipped when a connection string is used instead.
func ValidateIdentifiers(cfg *Config) error {
	if cfg.ConnectionString == "" {
		if err := ValidateHost(cfg.Host); err != nil {
			return err
		}
	}
	if err := ValidateUsername(cfg.Username); err != nil {
		return err
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return &InvalidInputError{Field: "port"}
	}
	return ValidateDatabase(cfg.Database)
}
