// Package sqlite provides an embedded implementation of storage.Storage on
// top of database/sql and the mattn/go-sqlite3 driver.
//
// It stores each person as one row and keeps favoriteFoods as a JSON array
// column, queried with SQLite's JSON functions. Ids are ObjectID hex
// strings, exactly as in the MongoDB backend, so both stores accept and
// reject the same ids.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/types"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the database/sql backed storage.Storage. *sql.DB is a
// connection pool safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

// seq gives natural insertion order, which is what "first match" means
// for the lookups by food and by name.
const schema = `
	CREATE TABLE IF NOT EXISTS people (
		seq            INTEGER PRIMARY KEY AUTOINCREMENT,
		id             TEXT    NOT NULL UNIQUE,
		name           TEXT,
		age            INTEGER,
		favorite_foods TEXT    NOT NULL DEFAULT '[]'
	)
`

const selectColumns = "SELECT id, name, age, favorite_foods FROM people"

// New opens the SQLite database at path and creates the people table if
// it does not exist. ":memory:" gives a private in-memory database.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}

	// A :memory: database lives and dies with its connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating people table")
	}

	return &SQLite{Db: db}, nil
}

func (s *SQLite) CreatePerson(ctx context.Context, p types.Person) (types.Person, error) {
	p.Normalize()
	if err := insert(ctx, s.Db, p); err != nil {
		return types.Person{}, err
	}
	return p, nil
}

// CreatePeople inserts every person in one transaction: either all rows are
// written or none are.
func (s *SQLite) CreatePeople(ctx context.Context, people []types.Person) ([]types.Person, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]types.Person, 0, len(people))
	for _, p := range people {
		p.Normalize()
		if err := insert(ctx, tx, p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing people")
	}
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, p types.Person) error {
	foods, err := json.Marshal(p.FavoriteFoods)
	if err != nil {
		return errors.Wrap(err, "encoding favorite foods")
	}

	var (
		name sql.NullString
		age  sql.NullInt64
	)
	if p.Name != nil {
		name = sql.NullString{String: *p.Name, Valid: true}
	}
	if p.Age != nil {
		age = sql.NullInt64{Int64: int64(*p.Age), Valid: true}
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO people (id, name, age, favorite_foods) VALUES (?, ?, ?, ?)",
		p.ID.Hex(), name, age, string(foods),
	)
	return errors.Wrap(err, "inserting person")
}

func (s *SQLite) GetPersonByID(ctx context.Context, id string) (types.Person, error) {
	if _, err := storage.ParseID(id); err != nil {
		return types.Person{}, err
	}
	return s.queryOne(ctx, selectColumns+" WHERE id = ? LIMIT 1", id)
}

func (s *SQLite) GetPersonByFood(ctx context.Context, food string) (types.Person, error) {
	return s.queryOne(ctx, selectColumns+`
		WHERE EXISTS (SELECT 1 FROM json_each(people.favorite_foods) WHERE json_each.value = ?)
		ORDER BY seq LIMIT 1`, food)
}

func (s *SQLite) queryOne(ctx context.Context, query string, args ...any) (types.Person, error) {
	p, err := scan(s.Db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Person{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Person{}, errors.Wrap(err, "scanning person")
	}
	return p, nil
}

func (s *SQLite) AppendFavoriteFood(ctx context.Context, id string, food string) (types.Person, error) {
	if _, err := storage.ParseID(id); err != nil {
		return types.Person{}, err
	}

	// json_insert with '$[#]' appends to the end of the array in place.
	res, err := s.Db.ExecContext(ctx,
		"UPDATE people SET favorite_foods = json_insert(favorite_foods, '$[#]', ?) WHERE id = ?",
		food, id,
	)
	if err != nil {
		return types.Person{}, errors.Wrapf(err, "appending favorite food to person '%s'", id)
	}
	if n, err := res.RowsAffected(); err != nil {
		return types.Person{}, errors.Wrap(err, "reading rows affected")
	} else if n == 0 {
		return types.Person{}, storage.ErrNotFound
	}

	return s.GetPersonByID(ctx, id)
}

func (s *SQLite) SetAgeByName(ctx context.Context, name string, age int) (*types.Person, error) {
	p, err := scan(s.Db.QueryRowContext(ctx, `
		UPDATE people SET age = ?
		WHERE seq = (SELECT seq FROM people WHERE name = ? ORDER BY seq LIMIT 1)
		RETURNING id, name, age, favorite_foods`, age, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "setting age for person named '%s'", name)
	}
	return &p, nil
}

func (s *SQLite) DeletePersonByID(ctx context.Context, id string) (*types.Person, error) {
	if _, err := storage.ParseID(id); err != nil {
		return nil, err
	}

	p, err := scan(s.Db.QueryRowContext(ctx,
		"DELETE FROM people WHERE id = ? RETURNING id, name, age, favorite_foods", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "deleting person '%s'", id)
	}
	return &p, nil
}

func (s *SQLite) DeletePeopleByName(ctx context.Context, name string) (int64, error) {
	res, err := s.Db.ExecContext(ctx, "DELETE FROM people WHERE name = ?", name)
	if err != nil {
		return 0, errors.Wrapf(err, "deleting people named '%s'", name)
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading rows affected")
}

func (s *SQLite) Ping(ctx context.Context) error {
	return errors.Wrap(s.Db.PingContext(ctx), "pinging sqlite")
}

func (s *SQLite) Close(context.Context) error {
	return errors.Wrap(s.Db.Close(), "closing sqlite")
}

// scan reads one row in selectColumns order. The column order in every
// SELECT/RETURNING clause above must match.
func scan(row *sql.Row) (types.Person, error) {
	var (
		p     types.Person
		id    string
		name  sql.NullString
		age   sql.NullInt64
		foods string
	)
	if err := row.Scan(&id, &name, &age, &foods); err != nil {
		return types.Person{}, err
	}

	oid, err := storage.ParseID(id)
	if err != nil {
		return types.Person{}, errors.Wrapf(err, "stored id '%s'", id)
	}
	p.ID = oid
	if name.Valid {
		p.Name = &name.String
	}
	if age.Valid {
		a := int(age.Int64)
		p.Age = &a
	}
	if err := json.Unmarshal([]byte(foods), &p.FavoriteFoods); err != nil {
		return types.Person{}, errors.Wrap(err, "decoding favorite foods")
	}
	p.Normalize()
	return p, nil
}
