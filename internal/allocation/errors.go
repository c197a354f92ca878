package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// Code is the closed set of failure reasons an allocation operation can
// surface to an operator.
type Code string

const (
	CodeGeneric             Code = "GENERIC"
	CodeAlreadyDeclined     Code = "ALREADY_DECLINED"
	CodeAlreadyHandled      Code = "ALREADY_HANDLED"
	CodeAlreadyAllocated    Code = "ALREADY_ALLOCATED"
	CodeApplicationReceived Code = "APPLICATION_RECEIVED"
)

var codeKeys = map[Code]string{
	CodeGeneric:             "generic",
	CodeAlreadyDeclined:     "alreadyDeclined",
	CodeAlreadyHandled:      "alreadyHandled",
	CodeAlreadyAllocated:    "alreadyAllocated",
	CodeApplicationReceived: "applicationReceived",
}

// Operation names the mutation that failed.
type Operation string

const (
	OpAccept Operation = "accept"
	OpReset  Operation = "reset"
)

// knownMessages maps backend rejection text to a failure reason. Matching is
// a case-insensitive substring test.
var knownMessages = []struct {
	fragment string
	code     Code
}{
	{fragment: "schedule cannot be approved for event in status: 'declined'", code: CodeAlreadyDeclined},
	{fragment: "schedule cannot be approved for application in status: 'handled'", code: CodeAlreadyHandled},
	{fragment: "given time slot has already been allocated", code: CodeAlreadyAllocated},
	{fragment: "cannot allocate to application in status: 'received'", code: CodeApplicationReceived},
}

// Error is a classified allocation failure.
type Error struct {
	Op     Operation
	Code   Code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("allocation: %s failed (%s)", e.Op, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MessageKey is the stable translation key for the failure, for example
// "allocation.errors.accept.alreadyDeclined".
func (e *Error) MessageKey() string {
	if e == nil {
		return ""
	}
	suffix, ok := codeKeys[e.Code]
	if !ok {
		suffix = codeKeys[CodeGeneric]
	}
	return fmt.Sprintf("allocation.errors.%s.%s", e.Op, suffix)
}

// messenger is implemented by backend errors that carry one message per
// rejected field or rule.
type messenger interface {
	Messages() []string
}

// Classify maps a backend failure onto a Code. Unknown messages become
// CodeGeneric. A nil error classifies to nil.
func Classify(op Operation, err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	messages := []string{err.Error()}
	var m messenger
	if errors.As(err, &m) {
		if msgs := m.Messages(); len(msgs) > 0 {
			messages = msgs
		}
	}

	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, known := range knownMessages {
			if strings.Contains(lower, known.fragment) {
				return &Error{Op: op, Code: known.code, Detail: msg, Err: err}
			}
		}
	}
	return &Error{Op: op, Code: CodeGeneric, Detail: strings.Join(messages, "; "), Err: err}
}

// CodeOf returns the failure reason carried by err, or CodeGeneric.
func CodeOf(err error) Code {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Code
	}
	return CodeGeneric
}
