package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Mongo is a Store keeping one document per triple in a
// "<prefix>_triples" collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type tripleDoc struct {
	Graph     string `bson:"graph"`
	Seq       int    `bson:"seq"`
	kg.Triple `bson:",inline"`
}

// OpenMongo connects to cfg.MongoURI, checks the connection and ensures
// the (graph, seq) index.
func OpenMongo(ctx context.Context, cfg Config) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, storeErr(err, "connect to mongo")
	}
	err = withRetry(ctx, func() error {
		return retryable(client.Ping(ctx, readpref.Primary()))
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, storeErr(err, "ping mongo")
	}
	coll := client.Database(cfg.MongoDatabase).Collection(cfg.KeyPrefix + "_triples")
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "graph", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, storeErr(err, "create index")
	}
	return &Mongo{client: client, coll: coll}, nil
}

// Put replaces the triples stored under graphID.
func (m *Mongo) Put(ctx context.Context, graphID string, triples []kg.Triple) error {
	if err := checkPut(graphID, triples); err != nil {
		return err
	}
	if _, err := m.coll.DeleteMany(ctx, bson.M{"graph": graphID}); err != nil {
		return storeErr(err, "clear %s", graphID)
	}
	docs := make([]any, len(triples))
	for i, t := range triples {
		docs[i] = tripleDoc{Graph: graphID, Seq: i, Triple: t}
	}
	if _, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return storeErr(err, "insert into %s", graphID)
	}
	return nil
}

// Scan calls fn for every triple of graphID.
func (m *Mongo) Scan(ctx context.Context, graphID string, fn func(kg.Triple) error) error {
	if err := apperr.ValidateGraphID(graphID); err != nil {
		return err
	}
	cur, err := m.coll.Find(ctx, bson.M{"graph": graphID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return storeErr(err, "query %s", graphID)
	}
	defer cur.Close(ctx)

	found := false
	for cur.Next(ctx) {
		found = true
		var d tripleDoc
		if err := cur.Decode(&d); err != nil {
			return storeErr(err, "decode triple of %s", graphID)
		}
		if err := fn(d.Triple); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return storeErr(err, "read %s", graphID)
	}
	if !found {
		return notFound(graphID)
	}
	return nil
}

// Delete removes graphID.
func (m *Mongo) Delete(ctx context.Context, graphID string) error {
	res, err := m.coll.DeleteMany(ctx, bson.M{"graph": graphID})
	if err != nil {
		return storeErr(err, "delete %s", graphID)
	}
	if res.DeletedCount == 0 {
		return notFound(graphID)
	}
	return nil
}

// List returns the stored graph ids.
func (m *Mongo) List(ctx context.Context) ([]string, error) {
	vals, err := m.coll.Distinct(ctx, "graph", bson.M{})
	if err != nil {
		return nil, storeErr(err, "list graphs")
	}
	ids := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return sorted(ids), nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

var _ Store = (*Mongo)(nil)
