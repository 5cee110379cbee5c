package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError is one failed rule.
type FieldError struct {
	Path  string
	Tag   string
	Param string
}

func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s", e.Path, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s: failed %s", e.Path, e.Tag)
}

// ValidationError lists every failed rule. It matches ErrInvalid.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate checks the structural rules of f. Level names and appender
// references are not checked here; the builder reports those to the status
// logger and leaves the offending item out.
func Validate(f *File) error {
	err := validatorInstance().Struct(f)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(ves))}
	for _, fe := range ves {
		out.Fields = append(out.Fields, FieldError{
			Path:  strings.TrimPrefix(fe.Namespace(), "File."),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
