package code

import (
	"errors"
)

// Kind classifies errors for callers that only care about the category.
// Kind 错误分类
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAccessDenied
	KindAlreadyRunning
	KindValidation
	KindConnector
	KindDecryption
)

var kindNames = map[Kind]string{
	KindInternal:       "internal",
	KindNotFound:       "not_found",
	KindAccessDenied:   "access_denied",
	KindAlreadyRunning: "already_running",
	KindValidation:     "validation",
	KindConnector:      "connector",
	KindDecryption:     "decryption",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

type kinder interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
// KindOf 返回错误链中第一个已分类错误的类别，未分类视为 internal
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
