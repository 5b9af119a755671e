package risk

import "errors"

type Code string

const (
	CodeLotLimit       Code = "LOT_LIMIT_EXCEEDED"
	CodeMargin         Code = "MARGIN_INSUFFICIENT"
	CodeLotSize        Code = "INVALID_LOT_SIZE"
	CodeContractLocked Code = "CONTRACT_LOCKED"
	CodeOffset         Code = "INVALID_OFFSET"
	CodePrice          Code = "INVALID_PRICE"
)

// Violation is a recoverable rejection. The account it was raised against is
// left untouched unless the caller documents otherwise.
type Violation struct {
	Code Code
	Msg  string
}

func (v *Violation) Error() string {
	if v.Msg == "" {
		return string(v.Code)
	}
	return v.Msg
}

// Is matches any violation carrying the same code, so the sentinels below
// work with errors.Is regardless of message.
func (v *Violation) Is(target error) bool {
	t, ok := target.(*Violation)
	return ok && t.Code == v.Code
}

var (
	ErrLotLimit       = &Violation{Code: CodeLotLimit}
	ErrMargin         = &Violation{Code: CodeMargin}
	ErrLotSize        = &Violation{Code: CodeLotSize}
	ErrContractLocked = &Violation{Code: CodeContractLocked}
	ErrOffset         = &Violation{Code: CodeOffset}
	ErrPrice          = &Violation{Code: CodePrice}
)

// AsViolation unwraps err into a *Violation.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsViolation reports whether err is a rejection rather than a failure.
func IsViolation(err error) bool {
	_, ok := AsViolation(err)
	return ok
}
