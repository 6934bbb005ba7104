// Package person contains the HTTP handlers for the Person resource.
//
// Every handler is built by a factory that receives the storage.Storage
// once at startup and returns the http.HandlerFunc invoked per request:
//
//	router.HandleFunc("POST /people", person.New(store))
package person

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/types"
	"github.com/aanand-mishra/people-api/internal/utils/response"
)

// Fixed values applied by the update endpoints. Request bodies sent to
// those endpoints are ignored.
const (
	AppendedFood = "hamburger"
	AgeByName    = 20
)

// Response messages. The two not-found messages are sent as plain text.
const (
	msgNotFound       = "Person not found"
	msgFoodNotFound   = "Person not found with specified favorite food"
	msgEmptyBody      = "request body is empty"
	deletedMsgPattern = "%d people deleted"
)

// DeleteResult is the body returned by DeleteByName.
type DeleteResult struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

// Register binds every person route on router.
//
//	POST   /people              create one
//	POST   /people/many         create many
//	GET    /people/{id}         read by id
//	GET    /people/food/{food}  read by favorite food
//	PUT    /people/{id}         append a favorite food
//	PUT    /people/name/{name}  set age by name
//	DELETE /people/{id}         delete by id
//	DELETE /people/name/{name}  delete every person with a name
func Register(router *http.ServeMux, store storage.Storage) {
	router.HandleFunc("POST /people", New(store))
	router.HandleFunc("POST /people/many", NewMany(store))
	router.HandleFunc("GET /people/{id}", GetByID(store))
	router.HandleFunc("GET /people/food/{food}", GetByFood(store))
	router.HandleFunc("PUT /people/{id}", AppendFood(store))
	router.HandleFunc("PUT /people/name/{name}", SetAgeByName(store))
	router.HandleFunc("DELETE /people/{id}", Delete(store))
	router.HandleFunc("DELETE /people/name/{name}", DeleteByName(store))
}

// New handles POST /people.
//
//	{ "name": "John", "age": 30, "favoriteFoods": ["pizza", "burger"] }
//
// 201 with the stored person; 400 on an empty or malformed body, a
// validation failure, or an insert error.
func New(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a person")

		var in types.PersonInput
		if !decodeBody(w, r, &in) {
			return
		}
		if !validateInput(w, in) {
			return
		}

		person, err := store.CreatePerson(r.Context(), in.ToPerson())
		if err != nil {
			slog.Error("error creating person", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		slog.Info("person created", slog.String("id", person.ID.Hex()))
		response.WriteJSON(w, http.StatusCreated, person)
	}
}

// NewMany handles POST /people/many with a JSON array of people.
//
// 201 with the stored people in request order; 400 if the body is not an
// array, any element fails validation, or the insert fails.
func NewMany(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating many people")

		var inputs []types.PersonInput
		if !decodeBody(w, r, &inputs) {
			return
		}

		people := make([]types.Person, 0, len(inputs))
		for _, in := range inputs {
			if !validateInput(w, in) {
				return
			}
			people = append(people, in.ToPerson())
		}

		created, err := store.CreatePeople(r.Context(), people)
		if err != nil {
			slog.Error("error creating people", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		slog.Info("people created", slog.Int("count", len(created)))
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// GetByID handles GET /people/{id}.
//
// 200 with the person; 404 text when absent; 400 for a malformed id; 500
// on storage errors.
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("getting a person", slog.String("id", id))

		person, err := store.GetPersonByID(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteText(w, http.StatusNotFound, msgNotFound)
			return
		}
		if err != nil {
			writeStorageError(w, err, "error getting person", slog.String("id", id))
			return
		}

		response.WriteJSON(w, http.StatusOK, person)
	}
}

// GetByFood handles GET /people/food/{food}: the first person whose
// favoriteFoods contains the value.
func GetByFood(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		food := r.PathValue("food")
		slog.Info("getting a person by favorite food", slog.String("food", food))

		person, err := store.GetPersonByFood(r.Context(), food)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteText(w, http.StatusNotFound, msgFoodNotFound)
			return
		}
		if err != nil {
			writeStorageError(w, err, "error getting person by food", slog.String("food", food))
			return
		}

		response.WriteJSON(w, http.StatusOK, person)
	}
}

// AppendFood handles PUT /people/{id}: appends AppendedFood to the
// person's favoriteFoods. Repeated calls append again.
//
// A missing person is a 500, not a 404: the update is attempted on a
// record that does not exist.
func AppendFood(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("appending favorite food", slog.String("id", id))
		logIgnoredBody(r)

		person, err := store.AppendFavoriteFood(r.Context(), id, AppendedFood)
		if err != nil {
			writeStorageError(w, err, "error appending favorite food", slog.String("id", id))
			return
		}

		response.WriteJSON(w, http.StatusOK, person)
	}
}

// SetAgeByName handles PUT /people/name/{name}: sets age to AgeByName on
// the first person with that name. 200 with null when nobody matches.
func SetAgeByName(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		slog.Info("setting age by name", slog.String("name", name))
		logIgnoredBody(r)

		person, err := store.SetAgeByName(r.Context(), name, AgeByName)
		if err != nil {
			writeStorageError(w, err, "error setting age by name", slog.String("name", name))
			return
		}

		response.WriteJSON(w, http.StatusOK, person)
	}
}

// Delete handles DELETE /people/{id}. 200 with the removed person, or
// null when the id matched nothing.
func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("deleting a person", slog.String("id", id))

		person, err := store.DeletePersonByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, err, "error deleting person", slog.String("id", id))
			return
		}

		response.WriteJSON(w, http.StatusOK, person)
	}
}

// DeleteByName handles DELETE /people/name/{name}, removing every person
// with that name.
//
//	{ "message": "2 people deleted", "deletedCount": 2 }
func DeleteByName(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		slog.Info("deleting people by name", slog.String("name", name))

		n, err := store.DeletePeopleByName(r.Context(), name)
		if err != nil {
			writeStorageError(w, err, "error deleting people by name", slog.String("name", name))
			return
		}

		slog.Info("people deleted", slog.String("name", name), slog.Int64("count", n))
		response.WriteJSON(w, http.StatusOK, DeleteResult{
			Message:      fmt.Sprintf(deletedMsgPattern, n),
			DeletedCount: n,
		})
	}
}

// decodeBody decodes the JSON body into dst and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New(msgEmptyBody)))
		return false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return false
	}
	return true
}

// validateInput writes a 400 listing every failed rule when in is invalid.
func validateInput(w http.ResponseWriter, in types.PersonInput) bool {
	err := in.Validate()
	if err == nil {
		return true
	}

	var validateErrs validator.ValidationErrors
	if errors.As(err, &validateErrs) {
		response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
	} else {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
	}
	return false
}

// writeStorageError maps a storage failure to a status code: a malformed
// id is the client's fault, everything else is a 500.
func writeStorageError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrInvalidID) {
		status = http.StatusBadRequest
	}

	slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
	response.WriteJSON(w, status, response.GeneralError(err))
}

func logIgnoredBody(r *http.Request) {
	if r.ContentLength > 0 {
		slog.Debug("request body ignored: update applies fixed values",
			slog.String("path", r.URL.Path))
	}
}
