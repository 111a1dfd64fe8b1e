// Package validation turns submitted forms into typed values or field level
// failures. Failures are results, not errors: handlers receive either valid
// data or a Failure to render, never both.
package validation

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Values holds the first submitted value of every form field, trimmed.
type Values map[string]string

func ParseForm(r *http.Request) (Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	out := make(Values, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			out[k] = strings.TrimSpace(vs[0])
		}
	}
	return out, nil
}

// Has reports whether key was submitted at all.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Ptr returns the submitted value, or nil when key is absent.
func (v Values) Ptr(key string) *string {
	s, ok := v[key]
	if !ok {
		return nil
	}
	return &s
}

// Without returns a copy minus keys.
func (v Values) Without(keys ...string) Values {
	out := make(Values, len(v))
	for k, s := range v {
		out[k] = s
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// secretFields are never echoed back to the client.
var secretFields = []string{"password", "confirmPassword"}

// Echo is the set of values safe to send back with a failure.
func (v Values) Echo() Values {
	return v.Without(secretFields...)
}

type FieldErrors map[string][]string

type Failure struct {
	FieldErrors FieldErrors `json:"fieldErrors"`
	FormErrors  []string    `json:"formErrors"`
}

func (f *Failure) AddField(field, msg string) {
	if f.FieldErrors == nil {
		f.FieldErrors = FieldErrors{}
	}
	f.FieldErrors[field] = append(f.FieldErrors[field], msg)
}

func (f *Failure) AddForm(msg string) {
	f.FormErrors = append(f.FormErrors, msg)
}

func (f Failure) Empty() bool {
	return len(f.FieldErrors) == 0 && len(f.FormErrors) == 0
}

// Result is either Ok data or a Failure.
type Result[T any] struct {
	value   T
	failure *Failure
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Failed[T any](f Failure) Result[T] {
	if f.FieldErrors == nil {
		f.FieldErrors = FieldErrors{}
	}
	if f.FormErrors == nil {
		f.FormErrors = []string{}
	}
	return Result[T]{failure: &f}
}

func (r Result[T]) Get() (T, bool) {
	return r.value, r.failure == nil
}

func (r Result[T]) Failure() (Failure, bool) {
	if r.failure == nil {
		return Failure{}, false
	}
	return *r.failure, true
}

// Messages maps "field.tag" or a bare "tag" to the text shown for that rule.
type Messages map[string]string

func (m Messages) lookup(fe validator.FieldError) string {
	if msg, ok := m[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := m[fe.Tag()]; ok {
		return msg
	}
	return "Invalid value"
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	for tag, fn := range map[string]validator.Func{
		"hasupper":  containsAny(func(r rune) bool { return r >= 'A' && r <= 'Z' }),
		"haslower":  containsAny(func(r rune) bool { return r >= 'a' && r <= 'z' }),
		"hasdigit":  containsAny(func(r rune) bool { return r >= '0' && r <= '9' }),
		"hassymbol": containsAny(func(r rune) bool { return !isASCIIAlnum(r) }),
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

func containsAny(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Check runs the struct's validate tags. Each field reports its first broken
// rule only.
func Check[T any](in T, msgs Messages) Result[T] {
	err := validate.Struct(in)
	if err == nil {
		return Ok(in)
	}
	var f Failure
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		f.AddForm("Invalid submission")
		return Failed[T](f)
	}
	for _, fe := range verrs {
		f.AddField(fe.Field(), msgs.lookup(fe))
	}
	return Failed[T](f)
}
