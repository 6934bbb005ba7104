// Package storagetest holds the behavior every storage.Storage backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/types"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Storage

// NewPerson builds a Person with a fresh id. A negative age leaves Age nil.
func NewPerson(name string, age int, foods ...string) types.Person {
	p := types.Person{
		ID:            primitive.NewObjectID(),
		FavoriteFoods: foods,
	}
	if name != "" {
		p.Name = &name
	}
	if age >= 0 {
		p.Age = &age
	}
	p.Normalize()
	return p
}

// Run exercises the whole storage.Storage contract against stores built by
// newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateThenGetByID", func(t *testing.T) {
		s := newStore(t)
		in := NewPerson("John", 30, "pizza", "burger")

		created, err := s.CreatePerson(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in, created)

		got, err := s.GetPersonByID(ctx, created.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("OptionalFieldsStayUnset", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreatePerson(ctx, types.Person{ID: primitive.NewObjectID()})
		require.NoError(t, err)

		got, err := s.GetPersonByID(ctx, created.ID.Hex())
		require.NoError(t, err)
		assert.Nil(t, got.Name)
		assert.Nil(t, got.Age)
		assert.NotNil(t, got.FavoriteFoods)
		assert.Empty(t, got.FavoriteFoods)
	})

	t.Run("CreatePeople", func(t *testing.T) {
		s := newStore(t)
		people := []types.Person{
			NewPerson("John", 30, "pizza"),
			NewPerson("Jane", 25, "sushi", "pasta"),
			NewPerson("Jim", -1),
		}

		created, err := s.CreatePeople(ctx, people)
		require.NoError(t, err)
		require.Len(t, created, len(people))

		for i, p := range created {
			assert.Equal(t, people[i].ID, p.ID)
			got, err := s.GetPersonByID(ctx, p.ID.Hex())
			require.NoError(t, err)
			assert.Equal(t, p, got)
		}
	})

	t.Run("CreatePeopleEmpty", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreatePeople(ctx, []types.Person{})
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("CreateDuplicateIDFails", func(t *testing.T) {
		s := newStore(t)
		p := NewPerson("John", 30)
		_, err := s.CreatePerson(ctx, p)
		require.NoError(t, err)

		_, err = s.CreatePerson(ctx, p)
		assert.Error(t, err)
	})

	t.Run("GetByIDMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetPersonByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetByIDMalformed", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetPersonByID(ctx, "not-an-id")
		assert.ErrorIs(t, err, storage.ErrInvalidID)
	})

	t.Run("GetByFood", func(t *testing.T) {
		s := newStore(t)
		john, err := s.CreatePerson(ctx, NewPerson("John", 30, "pizza", "burger"))
		require.NoError(t, err)
		jane, err := s.CreatePerson(ctx, NewPerson("Jane", 25, "sushi", "pasta"))
		require.NoError(t, err)

		got, err := s.GetPersonByFood(ctx, "burger")
		require.NoError(t, err)
		assert.Equal(t, john.ID, got.ID)

		got, err = s.GetPersonByFood(ctx, "sushi")
		require.NoError(t, err)
		assert.Equal(t, jane.ID, got.ID)

		_, err = s.GetPersonByFood(ctx, "tacos")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("AppendFavoriteFoodKeepsDuplicates", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreatePerson(ctx, NewPerson("John", 30, "pizza", "burger"))
		require.NoError(t, err)

		got, err := s.AppendFavoriteFood(ctx, p.ID.Hex(), "hamburger")
		require.NoError(t, err)
		assert.Equal(t, []string{"pizza", "burger", "hamburger"}, got.FavoriteFoods)

		got, err = s.AppendFavoriteFood(ctx, p.ID.Hex(), "hamburger")
		require.NoError(t, err)
		assert.Equal(t, []string{"pizza", "burger", "hamburger", "hamburger"}, got.FavoriteFoods)

		stored, err := s.GetPersonByID(ctx, p.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, got, stored)
	})

	t.Run("AppendFavoriteFoodToEmptyList", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreatePerson(ctx, NewPerson("Jim", -1))
		require.NoError(t, err)

		got, err := s.AppendFavoriteFood(ctx, p.ID.Hex(), "hamburger")
		require.NoError(t, err)
		assert.Equal(t, []string{"hamburger"}, got.FavoriteFoods)
	})

	t.Run("AppendFavoriteFoodMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AppendFavoriteFood(ctx, primitive.NewObjectID().Hex(), "hamburger")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.AppendFavoriteFood(ctx, "zzz", "hamburger")
		assert.ErrorIs(t, err, storage.ErrInvalidID)
	})

	t.Run("SetAgeByNameUpdatesFirstMatch", func(t *testing.T) {
		s := newStore(t)
		first, err := s.CreatePerson(ctx, NewPerson("Jane", 25, "sushi"))
		require.NoError(t, err)
		second, err := s.CreatePerson(ctx, NewPerson("Jane", 40))
		require.NoError(t, err)

		got, err := s.SetAgeByName(ctx, "Jane", 20)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
		require.NotNil(t, got.Age)
		assert.Equal(t, 20, *got.Age)
		assert.Equal(t, []string{"sushi"}, got.FavoriteFoods)

		untouched, err := s.GetPersonByID(ctx, second.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, 40, *untouched.Age)
	})

	t.Run("SetAgeByNameNoMatch", func(t *testing.T) {
		s := newStore(t)
		got, err := s.SetAgeByName(ctx, "Nobody", 20)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeletePersonByID", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreatePerson(ctx, NewPerson("John", 30, "pizza"))
		require.NoError(t, err)

		deleted, err := s.DeletePersonByID(ctx, p.ID.Hex())
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, p, *deleted)

		_, err = s.GetPersonByID(ctx, p.ID.Hex())
		assert.ErrorIs(t, err, storage.ErrNotFound)

		deleted, err = s.DeletePersonByID(ctx, p.ID.Hex())
		require.NoError(t, err)
		assert.Nil(t, deleted)

		_, err = s.DeletePersonByID(ctx, "bad")
		assert.ErrorIs(t, err, storage.ErrInvalidID)
	})

	t.Run("DeletePeopleByName", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreatePeople(ctx, []types.Person{
			NewPerson("Jane", 25),
			NewPerson("Jane", 31),
			NewPerson("John", 30),
		})
		require.NoError(t, err)

		n, err := s.DeletePeopleByName(ctx, "Jane")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = s.DeletePeopleByName(ctx, "Jane")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		_, err = s.GetPersonByID(ctx, created[2].ID.Hex())
		assert.NoError(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
