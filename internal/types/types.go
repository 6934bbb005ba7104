// Package types holds the shared data structures used across the
// application. Handlers, storage backends and response helpers all import
// types without depending on each other.
package types

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Person is the stored record.
//
// The same struct is used for BSON (MongoDB) and JSON (HTTP) so the wire
// shape matches the document shape: `_id`, `name`, `age`, `favoriteFoods`.
// Name and Age are pointers because both are optional and a missing value
// must stay distinguishable from "" or 0.
type Person struct {
	ID            primitive.ObjectID `json:"_id"            bson:"_id"`
	Name          *string            `json:"name,omitempty" bson:"name,omitempty"`
	Age           *int               `json:"age,omitempty"  bson:"age,omitempty"`
	FavoriteFoods []string           `json:"favoriteFoods"  bson:"favoriteFoods"`
}

// Normalize makes sure FavoriteFoods is never nil so it always encodes as
// an array. Documents written by other clients may lack the field entirely.
func (p *Person) Normalize() {
	if p.FavoriteFoods == nil {
		p.FavoriteFoods = []string{}
	}
}

// PersonInput is the request schema accepted by the create endpoints.
//
// It is decoupled from Person: the client never chooses the id, and every
// field carries an explicit validate:"..." rule checked by
// go-playground/validator before anything reaches storage.
type PersonInput struct {
	Name          *string  `json:"name"          validate:"omitempty,max=100"`
	Age           *int     `json:"age"           validate:"omitempty,min=0,max=150"`
	FavoriteFoods []string `json:"favoriteFoods" validate:"omitempty,dive,required,max=100"`
}

// validate is safe for concurrent use and caches struct metadata, so one
// instance is shared by every request.
var validate = newValidator()

// newValidator reports field errors under their JSON names so messages
// read "field favoriteFoods[0] is required" rather than Go field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the input against its validate tags. The returned error,
// when non-nil, is a validator.ValidationErrors.
func (in PersonInput) Validate() error {
	return validate.Struct(in)
}

// ToPerson maps a validated input onto a fresh Person with a newly
// generated id. The id is assigned here, exactly once, and never changes.
func (in PersonInput) ToPerson() Person {
	p := Person{
		ID:            primitive.NewObjectID(),
		Name:          in.Name,
		Age:           in.Age,
		FavoriteFoods: append([]string{}, in.FavoriteFoods...),
	}
	p.Normalize()
	return p
}
