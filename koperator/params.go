package koperator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Params is the raw parameter object of one operator in a program
// description. The "id" and "type" members are not parameters and are
// ignored by Decode.
type Params struct {
	raw jsontext.Value
}

func NewParams(raw []byte) Params {
	return Params{raw: jsontext.Value(raw)}
}

// ParamError locates a parameter problem. It wraps ErrInvalidParameter.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidParameter, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidParameter, e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

// Decode unmarshals the parameters into v, rejecting unknown members, and
// validates v's `validate` struct tags. Fields absent from the description
// keep the values v already holds, so callers preset defaults.
func (p Params) Decode(v any) error {
	members := map[string]jsontext.Value{}
	if len(p.raw) > 0 {
		if err := json.Unmarshal(p.raw, &members); err != nil {
			return &ParamError{Reason: err.Error()}
		}
	}
	delete(members, "id")
	delete(members, "type")

	stripped, err := json.Marshal(members, json.Deterministic(true))
	if err != nil {
		return &ParamError{Reason: err.Error()}
	}
	if err := json.Unmarshal(stripped, v, json.RejectUnknownMembers(true)); err != nil {
		return &ParamError{Reason: err.Error()}
	}
	return Validate(v)
}

// Validate checks the `validate` struct tags of v and reports every failing
// field as a *ParamError, combined with multierr.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ParamError{Reason: err.Error()}
	}
	var errs error
	for _, fe := range verrs {
		errs = multierr.Append(errs, &ParamError{Field: fieldPath(fe), Reason: describe(fe)})
	}
	return errs
}

// fieldPath drops the struct name from the namespace, leaving the JSON path.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}

// Invalid returns a *ParamError for checks struct tags cannot express.
func Invalid(field, format string, args ...any) error {
	return &ParamError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
