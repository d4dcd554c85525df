// Package forms holds editable form state as immutable values. Every transition goes through Reduce,
// which returns a new State and leaves its input untouched.
package forms

import (
	"errors"
	"maps"
	"reflect"

	"github.com/charlesng35/hrconsole/internal/client"
	"github.com/charlesng35/hrconsole/pkg/validator"
)

// State is a snapshot of one form. Errors and Touched are keyed by the JSON field name.
type State[V any] struct {
	Values      V
	Initial     V
	Errors      map[string]string
	Touched     map[string]bool
	Submitting  bool
	SubmitCount int
	SubmitError string
}

// New returns a pristine state for initial.
func New[V any](initial V) State[V] {
	return State[V]{
		Values:  initial,
		Initial: initial,
		Errors:  map[string]string{},
		Touched: map[string]bool{},
	}
}

// Dirty reports whether the values differ from the initial ones.
func (s State[V]) Dirty() bool {
	return !reflect.DeepEqual(s.Values, s.Initial)
}

// Valid reports whether the last validation found no errors.
func (s State[V]) Valid() bool {
	return len(s.Errors) == 0
}

// FieldError returns the message shown for field, only once the field was touched or a submit was tried.
func (s State[V]) FieldError(field string) string {
	if !s.Touched[field] && s.SubmitCount == 0 {
		return ""
	}
	return s.Errors[field]
}

// Action is a form transition.
type Action[V any] interface {
	apply(State[V]) State[V]
}

// Reduce applies action to state.
func Reduce[V any](state State[V], action Action[V]) State[V] {
	if action == nil {
		return state
	}
	return action.apply(state.clone())
}

// Change updates the values through Update and marks Field touched. Update must return a new value
// instead of mutating its argument. After a submit attempt the values are revalidated on every change.
type Change[V any] struct {
	Field  string
	Update func(V) V
}

func (a Change[V]) apply(s State[V]) State[V] {
	if a.Update != nil {
		s.Values = a.Update(s.Values)
	}
	if a.Field != "" {
		s.Touched[a.Field] = true
	}
	if s.SubmitCount > 0 {
		s.Errors = validate(s.Values)
	}
	return s
}

// Validate checks the values against their declared rules.
type Validate[V any] struct{}

func (Validate[V]) apply(s State[V]) State[V] {
	s.Errors = validate(s.Values)
	return s
}

// Reset returns to the initial values. A non-nil Values also replaces the initial values.
type Reset[V any] struct {
	Values *V
}

func (a Reset[V]) apply(s State[V]) State[V] {
	initial := s.Initial
	if a.Values != nil {
		initial = *a.Values
	}
	return New(initial)
}

// SubmitStarted validates and, when the values are valid, marks the form as submitting.
type SubmitStarted[V any] struct{}

func (SubmitStarted[V]) apply(s State[V]) State[V] {
	s.SubmitCount++
	s.SubmitError = ""
	s.Errors = validate(s.Values)
	s.Submitting = len(s.Errors) == 0
	return s
}

// SubmitSucceeded ends the submit. The submitted values, or Saved when set, become the new initial values.
type SubmitSucceeded[V any] struct {
	Saved *V
}

func (a SubmitSucceeded[V]) apply(s State[V]) State[V] {
	if a.Saved != nil {
		s.Values = *a.Saved
	}
	s.Initial = s.Values
	s.Submitting = false
	s.SubmitError = ""
	s.Errors = map[string]string{}
	return s
}

// SubmitFailed ends the submit with Err. Field validation failures, local or reported by the server,
// are merged into Errors.
type SubmitFailed[V any] struct {
	Err error
}

func (a SubmitFailed[V]) apply(s State[V]) State[V] {
	s.Submitting = false
	if a.Err == nil {
		s.SubmitError = "submit failed"
		return s
	}
	s.SubmitError = a.Err.Error()

	var fieldErrs validator.ValidationErrors
	if errors.As(a.Err, &fieldErrs) {
		maps.Copy(s.Errors, fieldErrs.Fields())
	}
	var apiErr *client.Error
	if errors.As(a.Err, &apiErr) {
		maps.Copy(s.Errors, apiErr.Fields)
	}
	return s
}

func (s State[V]) clone() State[V] {
	s.Errors = maps.Clone(s.Errors)
	if s.Errors == nil {
		s.Errors = map[string]string{}
	}
	s.Touched = maps.Clone(s.Touched)
	if s.Touched == nil {
		s.Touched = map[string]bool{}
	}
	return s
}

func validate(values any) map[string]string {
	err := validator.ValidateStruct(values)
	if err == nil {
		return map[string]string{}
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.Fields()
	}
	return map[string]string{"": err.Error()}
}
