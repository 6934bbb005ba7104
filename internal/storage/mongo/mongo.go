// Package mongo provides the MongoDB implementation of storage.Storage
// using the official mongo-go-driver.
//
// Each person is one document in a single collection ("people" by
// default). The document shape is the types.Person BSON shape, so records
// written by other clients of the same collection are readable here.
package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/aanand-mishra/people-api/internal/config"
	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/types"
)

const (
	defaultDatabase = "test"
	connectTimeout  = 10 * time.Second
)

// Field names as stored in the document.
const (
	idKey            = "_id"
	nameKey          = "name"
	ageKey           = "age"
	favoriteFoodsKey = "favoriteFoods"
)

// Mongo is the MongoDB backed storage.Storage. The client is a connection
// pool and safe for concurrent use.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to the deployment named by cfg.MongoURI and verifies it with
// a ping. The database is cfg.MongoDatabase, falling back to the database
// in the URI path and then to "test".
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	dbName, err := databaseName(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongodb")
	}

	return &Mongo{
		client: client,
		coll:   client.Database(dbName).Collection(cfg.MongoCollection),
	}, nil
}

func databaseName(uri, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", errors.Wrap(err, "parsing mongodb connection string")
	}
	if cs.Database != "" {
		return cs.Database, nil
	}
	return defaultDatabase, nil
}

func (m *Mongo) CreatePerson(ctx context.Context, p types.Person) (types.Person, error) {
	p.Normalize()
	if _, err := m.coll.InsertOne(ctx, p); err != nil {
		return types.Person{}, errors.Wrap(err, "inserting person")
	}
	return p, nil
}

func (m *Mongo) CreatePeople(ctx context.Context, people []types.Person) ([]types.Person, error) {
	if len(people) == 0 {
		return []types.Person{}, nil
	}

	docs := make([]interface{}, 0, len(people))
	for i := range people {
		people[i].Normalize()
		docs = append(docs, people[i])
	}

	if _, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return nil, errors.Wrapf(err, "inserting %d people", len(people))
	}
	return people, nil
}

func (m *Mongo) GetPersonByID(ctx context.Context, id string) (types.Person, error) {
	oid, err := storage.ParseID(id)
	if err != nil {
		return types.Person{}, err
	}
	return m.findOne(ctx, bson.M{idKey: oid})
}

// GetPersonByFood relies on MongoDB array matching: an equality filter on
// an array field matches documents where any element equals the value.
func (m *Mongo) GetPersonByFood(ctx context.Context, food string) (types.Person, error) {
	return m.findOne(ctx, bson.M{favoriteFoodsKey: food})
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (types.Person, error) {
	var p types.Person
	err := m.coll.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Person{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Person{}, errors.Wrap(err, "finding person")
	}
	p.Normalize()
	return p, nil
}

func (m *Mongo) AppendFavoriteFood(ctx context.Context, id string, food string) (types.Person, error) {
	oid, err := storage.ParseID(id)
	if err != nil {
		return types.Person{}, err
	}

	p, err := m.findOneAndUpdate(ctx,
		bson.M{idKey: oid},
		bson.M{"$push": bson.M{favoriteFoodsKey: food}},
	)
	if err != nil {
		return types.Person{}, errors.Wrapf(err, "appending favorite food to person '%s'", id)
	}
	if p == nil {
		return types.Person{}, storage.ErrNotFound
	}
	return *p, nil
}

func (m *Mongo) SetAgeByName(ctx context.Context, name string, age int) (*types.Person, error) {
	p, err := m.findOneAndUpdate(ctx,
		bson.M{nameKey: name},
		bson.M{"$set": bson.M{ageKey: age}},
	)
	return p, errors.Wrapf(err, "setting age for person named '%s'", name)
}

// findOneAndUpdate applies update to the first match and returns the
// document after the update, or nil when nothing matched.
func (m *Mongo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*types.Person, error) {
	var p types.Person
	err := m.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (m *Mongo) DeletePersonByID(ctx context.Context, id string) (*types.Person, error) {
	oid, err := storage.ParseID(id)
	if err != nil {
		return nil, err
	}

	var p types.Person
	err = m.coll.FindOneAndDelete(ctx, bson.M{idKey: oid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "deleting person '%s'", id)
	}
	p.Normalize()
	return &p, nil
}

func (m *Mongo) DeletePeopleByName(ctx context.Context, name string) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.M{nameKey: name})
	if err != nil {
		return 0, errors.Wrapf(err, "deleting people named '%s'", name)
	}
	return res.DeletedCount, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return errors.Wrap(m.client.Ping(ctx, nil), "pinging mongodb")
}

func (m *Mongo) Close(ctx context.Context) error {
	return errors.Wrap(m.client.Disconnect(ctx), "disconnecting from mongodb")
}
