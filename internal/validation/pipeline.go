package validation

import (
	"encoding/json"
	"net/http"
)

// Schema turns submitted values into T.
type Schema[T any] func(Values) Result[T]

// Handler receives data that passed its schema, plus the raw values.
type Handler[T any] func(w http.ResponseWriter, r *http.Request, data T, raw Values)

// FailureBody is written with status 400 when a form does not validate.
type FailureBody struct {
	Errors Failure `json:"errors"`
	Values Values  `json:"values"`
}

// Handle parses the form, applies schema and only calls next with valid data.
// Anything else is answered with a 400 that echoes the non-secret values.
func Handle[T any](schema Schema[T], next Handler[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := ParseForm(r)
		if err != nil {
			var f Failure
			f.AddForm("Could not read form submission")
			writeFailure(w, f, Values{})
			return
		}
		res := schema(values)
		data, ok := res.Get()
		if !ok {
			f, _ := res.Failure()
			writeFailure(w, f, values.Echo())
			return
		}
		next(w, r, data, values)
	}
}

func writeFailure(w http.ResponseWriter, f Failure, values Values) {
	if f.FieldErrors == nil {
		f.FieldErrors = FieldErrors{}
	}
	if f.FormErrors == nil {
		f.FormErrors = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(FailureBody{Errors: f, Values: values})
}
