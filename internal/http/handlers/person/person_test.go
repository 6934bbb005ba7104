package person_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aanand-mishra/people-api/internal/http/handlers/person"
	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/storage/sqlite"
	"github.com/aanand-mishra/people-api/internal/types"
	"github.com/aanand-mishra/people-api/internal/utils/response"
)

func newRouter(store storage.Storage) *http.ServeMux {
	router := http.NewServeMux()
	person.Register(router, store)
	return router
}

func newSQLiteRouter(t *testing.T) *http.ServeMux {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return newRouter(s)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func create(t *testing.T, h http.Handler, body string) types.Person {
	rec := do(t, h, http.MethodPost, "/people", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.Person](t, rec)
}

func TestCreateThenGetByID(t *testing.T) {
	h := newSQLiteRouter(t)

	created := create(t, h, `{"name":"John","age":30,"favoriteFoods":["pizza","burger"]}`)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "John", *created.Name)
	assert.Equal(t, 30, *created.Age)
	assert.Equal(t, []string{"pizza", "burger"}, created.FavoriteFoods)

	rec := do(t, h, http.MethodGet, "/people/"+created.ID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, created, decode[types.Person](t, rec))
}

func TestCreateDefaultsFavoriteFoods(t *testing.T) {
	h := newSQLiteRouter(t)

	rec := do(t, h, http.MethodPost, "/people", `{"name":"Jim","unknown":"ignored"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, []any{}, raw["favoriteFoods"])
	assert.NotContains(t, raw, "age")
	assert.NotContains(t, raw, "unknown")
}

func TestCreateRejectsBadInput(t *testing.T) {
	h := newSQLiteRouter(t)

	for name, tc := range map[string]struct {
		body    string
		wantErr string
	}{
		"EmptyBody":     {body: "", wantErr: "request body is empty"},
		"MalformedJSON": {body: `{"name":`},
		"WrongType":     {body: `{"age":"thirty"}`},
		"NegativeAge":   {body: `{"age":-1}`, wantErr: "field age must be at least 0"},
		"EmptyFood":     {body: `{"favoriteFoods":["pizza",""]}`, wantErr: "field favoriteFoods[1] is required"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/people", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			got := decode[response.Response](t, rec)
			assert.Equal(t, response.StatusError, got.Status)
			assert.NotEmpty(t, got.Error)
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, got.Error)
			}
		})
	}
}

func TestCreateMany(t *testing.T) {
	h := newSQLiteRouter(t)

	rec := do(t, h, http.MethodPost, "/people/many", `[
		{"name":"John","age":30,"favoriteFoods":["pizza","burger"]},
		{"name":"Jane","age":25,"favoriteFoods":["sushi","pasta"]},
		{"name":"Jim"}
	]`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	people := decode[[]types.Person](t, rec)
	require.Len(t, people, 3)
	assert.Equal(t, "John", *people[0].Name)
	assert.Equal(t, "Jane", *people[1].Name)
	assert.Equal(t, "Jim", *people[2].Name)

	for _, p := range people {
		rec := do(t, h, http.MethodGet, "/people/"+p.ID.Hex(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, p, decode[types.Person](t, rec))
	}
}

func TestCreateManyRejectsBadInput(t *testing.T) {
	h := newSQLiteRouter(t)

	for name, body := range map[string]string{
		"NotAnArray":  `{"name":"John"}`,
		"InvalidItem": `[{"name":"John"},{"age":-3}]`,
		"EmptyBody":   "",
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/people/many", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// Nothing from the rejected batch was stored.
	rec := do(t, h, http.MethodDelete, "/people/name/John", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[person.DeleteResult](t, rec).DeletedCount)
}

func TestCreateManyEmptyArray(t *testing.T) {
	h := newSQLiteRouter(t)

	rec := do(t, h, http.MethodPost, "/people/many", `[]`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetByIDNotFound(t *testing.T) {
	h := newSQLiteRouter(t)

	rec := do(t, h, http.MethodGet, "/people/"+primitive.NewObjectID().Hex(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Person not found", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestMalformedIDIsBadRequest(t *testing.T) {
	h := newSQLiteRouter(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := do(t, h, method, "/people/not-an-id", "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, storage.ErrInvalidID.Error(), decode[response.Response](t, rec).Error)
		})
	}
}

func TestGetByFood(t *testing.T) {
	h := newSQLiteRouter(t)
	john := create(t, h, `{"name":"John","favoriteFoods":["pizza","burger"]}`)
	jane := create(t, h, `{"name":"Jane","favoriteFoods":["sushi","pasta"]}`)

	rec := do(t, h, http.MethodGet, "/people/food/pizza", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, john.ID, decode[types.Person](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/people/food/pasta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jane.ID, decode[types.Person](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/people/food/tacos", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Person not found with specified favorite food", rec.Body.String())
}

func TestAppendFood(t *testing.T) {
	h := newSQLiteRouter(t)
	p := create(t, h, `{"name":"John","favoriteFoods":["pizza","burger"]}`)

	rec := do(t, h, http.MethodPut, "/people/"+p.ID.Hex(), `{"favoriteFoods":["salad"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pizza", "burger", "hamburger"}, decode[types.Person](t, rec).FavoriteFoods)

	rec = do(t, h, http.MethodPut, "/people/"+p.ID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pizza", "burger", "hamburger", "hamburger"}, decode[types.Person](t, rec).FavoriteFoods)
}

func TestAppendFoodMissingPerson(t *testing.T) {
	h := newSQLiteRouter(t)

	rec := do(t, h, http.MethodPut, "/people/"+primitive.NewObjectID().Hex(), "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, response.StatusError, decode[response.Response](t, rec).Status)
}

func TestSetAgeByName(t *testing.T) {
	h := newSQLiteRouter(t)
	jane := create(t, h, `{"name":"Jane","age":25,"favoriteFoods":["sushi"]}`)

	rec := do(t, h, http.MethodPut, "/people/name/Jane", `{"age":99}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[types.Person](t, rec)
	assert.Equal(t, jane.ID, got.ID)
	require.NotNil(t, got.Age)
	assert.Equal(t, person.AgeByName, *got.Age)
	assert.Equal(t, 20, *got.Age)
}

func TestSetAgeByNameNoMatchIsNull(t *testing.T) {
	h := newSQLiteRouter(t)

	rec := do(t, h, http.MethodPut, "/people/name/Nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestDeleteByID(t *testing.T) {
	h := newSQLiteRouter(t)
	p := create(t, h, `{"name":"John","age":30}`)

	rec := do(t, h, http.MethodDelete, "/people/"+p.ID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p, decode[types.Person](t, rec))

	rec = do(t, h, http.MethodGet, "/people/"+p.ID.Hex(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/people/"+p.ID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestDeleteByName(t *testing.T) {
	h := newSQLiteRouter(t)
	create(t, h, `{"name":"Jane","age":25}`)
	create(t, h, `{"name":"Jane","age":31}`)
	john := create(t, h, `{"name":"John","age":30}`)

	rec := do(t, h, http.MethodDelete, "/people/name/Jane", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"2 people deleted","deletedCount":2}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/people/"+john.ID.Hex(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// failingStore answers every call with err.
type failingStore struct {
	storage.Storage
	err error
}

func (f failingStore) CreatePerson(context.Context, types.Person) (types.Person, error) {
	return types.Person{}, f.err
}

func (f failingStore) GetPersonByID(context.Context, string) (types.Person, error) {
	return types.Person{}, f.err
}

func (f failingStore) GetPersonByFood(context.Context, string) (types.Person, error) {
	return types.Person{}, f.err
}

func (f failingStore) SetAgeByName(context.Context, string, int) (*types.Person, error) {
	return nil, f.err
}

func (f failingStore) DeletePeopleByName(context.Context, string) (int64, error) {
	return 0, f.err
}

func TestStorageFailures(t *testing.T) {
	h := newRouter(failingStore{err: errors.New("connection refused")})

	for name, tc := range map[string]struct {
		method, path, body string
		want               int
	}{
		"Create":       {http.MethodPost, "/people", `{"name":"John"}`, http.StatusBadRequest},
		"GetByID":      {http.MethodGet, "/people/" + primitive.NewObjectID().Hex(), "", http.StatusInternalServerError},
		"GetByFood":    {http.MethodGet, "/people/food/pizza", "", http.StatusInternalServerError},
		"SetAgeByName": {http.MethodPut, "/people/name/Jane", "", http.StatusInternalServerError},
		"DeleteByName": {http.MethodDelete, "/people/name/Jane", "", http.StatusInternalServerError},
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			require.Equal(t, tc.want, rec.Code)
			assert.Equal(t,
				response.Response{Status: response.StatusError, Error: "connection refused"},
				decode[response.Response](t, rec))
		})
	}
}
