package document

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound 索引不存在
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists 索引已存在（并发创建时的败者）
	ErrIndexExists = errors.New("index already exists")
)

// Kind 错误分类
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUnsupported        Kind = "unsupported"
	KindExtraction         Kind = "extraction"
	KindStorage            Kind = "storage"
	KindIndex              Kind = "index"
	KindBackendUnavailable Kind = "backend_unavailable"
)

// Error 带分类的领域错误。Reason 面向用户，Err 仅用于日志。
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, reason string, err error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: err}
}

// KindOf 返回错误分类，非领域错误返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ReasonOf 返回面向用户的原因
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
