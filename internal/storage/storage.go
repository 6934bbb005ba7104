// Package storage defines the Storage interface: the contract any
// document store must satisfy to back the people API.
//
// Handlers depend only on this interface. Switching from MongoDB to the
// embedded SQLite backend (or a fake in tests) changes one line in main.go
// and nothing in the HTTP layer.
package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aanand-mishra/people-api/internal/types"
)

// Sentinel errors shared by every backend. Callers compare with errors.Is.
var (
	// ErrNotFound is returned when a lookup by id or field matches nothing.
	ErrNotFound = errors.New("person not found")

	// ErrInvalidID is returned when an id is not a 24 character hex ObjectID.
	ErrInvalidID = errors.New("invalid id: must be a 24 character hex string")
)

// Storage is the database contract.
type Storage interface {
	// CreatePerson inserts one record and returns it as stored.
	CreatePerson(ctx context.Context, p types.Person) (types.Person, error)

	// CreatePeople inserts every record in one batch, in order.
	CreatePeople(ctx context.Context, people []types.Person) ([]types.Person, error)

	// GetPersonByID fetches one record by id. ErrNotFound if absent.
	GetPersonByID(ctx context.Context, id string) (types.Person, error)

	// GetPersonByFood returns the first record whose favoriteFoods
	// contains food. ErrNotFound if nobody lists it.
	GetPersonByFood(ctx context.Context, food string) (types.Person, error)

	// AppendFavoriteFood pushes food onto the record's favoriteFoods and
	// returns the updated record. Duplicates are kept.
	AppendFavoriteFood(ctx context.Context, id string, food string) (types.Person, error)

	// SetAgeByName sets age on the first record named name and returns the
	// updated record, or nil when no record has that name.
	SetAgeByName(ctx context.Context, name string, age int) (*types.Person, error)

	// DeletePersonByID removes one record and returns it, or nil when the
	// id matched nothing.
	DeletePersonByID(ctx context.Context, id string) (*types.Person, error)

	// DeletePeopleByName removes every record named name and reports how
	// many were deleted.
	DeletePeopleByName(ctx context.Context, name string) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// ParseID converts a path id into an ObjectID. Every backend uses it so a
// malformed id is rejected the same way regardless of the store.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}
