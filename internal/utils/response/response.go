// Package response provides helpers for writing consistent HTTP responses.
//
// Success responses may be any JSON shape (a person, a list, null, a
// message). Error responses always use the Response envelope, except the
// plain-text not-found messages written with WriteText.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the envelope returned for error cases:
//
//	{ "status": "error", "error": "field age must be at least 0" }
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes data as JSON with the given status code. A nil data
// value encodes as the literal null.
//
// Header() must be set before WriteHeader(), and WriteHeader() before any
// body bytes.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteText writes a plain-text body with the given status code.
func WriteText(w http.ResponseWriter, status int, msg string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(msg))
	return err
}

// GeneralError wraps any error into the standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError turns validator field errors into a single readable
// Response, one sentence per failing field joined with ", ".
//
//	{ "status": "error", "error": "field age must be at most 150, field favoriteFoods[0] is required" }
func ValidationError(errs validator.ValidationErrors) Response {
	errMessages := make([]string, 0, len(errs))

	for _, e := range errs {
		field := fieldName(e)
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", field))
		case "min", "gte":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be at least %s", field, e.Param()))
		case "max", "lte":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be at most %s", field, e.Param()))
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", field))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMessages, ", "),
	}
}

// fieldName reports the namespace below the root struct, e.g. "age" or
// "favoriteFoods[1]", using JSON names when the validator was told about
// them and Go field names otherwise.
func fieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}
