// Package domainerrors defines the categorized error type returned by every
// fallible operation in the module.
//
// An Error carries a Code (which implies a Category), a human-readable
// message, and the component/operation that produced it. Callers branch on
// codes with HasCode or CodeOf; errors.Is and errors.As see through the
// wrapped cause.
package domainerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a specific failure.
type Code string

// Category groups codes for routing and reporting.
type Category string

const (
	CategoryEntity      Category = "entity"
	CategoryIntent      Category = "intent"
	CategoryContract    Category = "contract"
	CategoryOperation   Category = "operation"
	CategoryConcurrency Category = "concurrency"
	CategorySystem      Category = "system"
)

const (
	// Entity errors
	CodeCapacityLacking     Code = "entity_capacity_lacking"
	CodeEntityStatusIllegal Code = "entity_status_illegal"
	CodeRelationMalformed   Code = "entity_relation_malformed"
	CodeEntity              Code = "entity_error"

	// Intent errors
	CodeContentMalformed    Code = "intent_content_malformed"
	CodeIntentStatusIllegal Code = "intent_status_illegal"
	CodeIntentStatusVoid    Code = "intent_status_void"
	CodeMatchFailure        Code = "intent_match_failure"

	// Contract errors
	CodeElementMissing        Code = "contract_element_missing"
	CodeContentIllegal        Code = "contract_content_illegal"
	CodePartyUnqualified      Code = "contract_party_unqualified"
	CodeContractStatusIllegal Code = "contract_status_illegal"

	// Operation errors
	CodeUnauthorized  Code = "operation_unauthorized"
	CodeTimingWrong   Code = "operation_timing_wrong"
	CodeSequenceWrong Code = "operation_sequence_wrong"

	// Concurrency errors
	CodeLockFailure Code = "lock_failure"

	// Generic errors
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
)

var categories = map[Code]Category{
	CodeCapacityLacking:       CategoryEntity,
	CodeEntityStatusIllegal:   CategoryEntity,
	CodeRelationMalformed:     CategoryEntity,
	CodeEntity:                CategoryEntity,
	CodeContentMalformed:      CategoryIntent,
	CodeIntentStatusIllegal:   CategoryIntent,
	CodeIntentStatusVoid:      CategoryIntent,
	CodeMatchFailure:          CategoryIntent,
	CodeElementMissing:        CategoryContract,
	CodeContentIllegal:        CategoryContract,
	CodePartyUnqualified:      CategoryContract,
	CodeContractStatusIllegal: CategoryContract,
	CodeUnauthorized:          CategoryOperation,
	CodeTimingWrong:           CategoryOperation,
	CodeSequenceWrong:         CategoryOperation,
	CodeLockFailure:           CategoryConcurrency,
}

// Category returns the category of the code. Generic codes fall into CategorySystem.
func (c Code) Category() Category {
	if cat, ok := categories[c]; ok {
		return cat
	}
	return CategorySystem
}

// Error is the canonical domain error.
type Error struct {
	Code           Code
	Message        string
	Op             string
	Component      string
	EntityIDs      []string
	LegalReference string
	Err            error
}

// New builds an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: strings.TrimSpace(message)}
}

// Newf is New with fmt formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap annotates err with a code. A nil err yields nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: strings.TrimSpace(message), Err: err}
}

// In records the component and operation that produced the error.
func (e *Error) In(component, op string) *Error {
	if e == nil {
		return nil
	}
	e.Component = component
	e.Op = op
	return e
}

// WithEntities attaches the ids of the entities involved.
func (e *Error) WithEntities(ids ...string) *Error {
	if e == nil {
		return nil
	}
	e.EntityIDs = append(e.EntityIDs, ids...)
	return e
}

// WithLegalReference attaches the statutory provision behind the failure.
func (e *Error) WithLegalReference(ref string) *Error {
	if e == nil {
		return nil
	}
	e.LegalReference = ref
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Component != "" || e.Op != "" {
		b.WriteString(strings.Trim(e.Component+"."+e.Op, "."))
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Code))
	}
	b.WriteString(" (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// HasCode reports whether err, or any error it wraps, carries code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	for err != nil {
		if !errors.As(err, &dErr) {
			return false
		}
		if dErr.Code == code {
			return true
		}
		err = dErr.Err
	}
	return false
}

// CodeOf returns the outermost code carried by err, or "" when none.
func CodeOf(err error) Code {
	var dErr *Error
	if !errors.As(err, &dErr) {
		return ""
	}
	return dErr.Code
}

// CategoryOf returns the category of the outermost code carried by err.
func CategoryOf(err error) Category {
	code := CodeOf(err)
	if code == "" {
		return ""
	}
	return code.Category()
}
