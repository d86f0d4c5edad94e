package etl

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
)

// MongoRowStore keeps import rows as {sessionId, rowIndex, rowData}
// documents.
type MongoRowStore struct {
	coll *mongo.Collection
}

func NewMongoRowStore(client *mongo.Client, database, collection string) *MongoRowStore {
	return &MongoRowStore{coll: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the unique (sessionId, rowIndex) index used for
// ordered paging.
func (m *MongoRowStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "rowIndex", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "create row index")
}

func (m *MongoRowStore) InsertRows(ctx context.Context, rows []models.ImportRow) error {
	if len(rows) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(rows))
	for _, r := range rows {
		writes = append(writes, mongo.NewInsertOneModel().SetDocument(r))
	}

	res, err := m.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return errors.Wrap(err, "insert rows")
	}
	logger.Debugf("Mongo BulkWrite: inserted %d rows", res.InsertedCount)
	return nil
}

func (m *MongoRowStore) Rows(ctx context.Context, sessionID int64, offset, limit int) ([]models.ImportRow, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "rowIndex", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.coll.Find(ctx, bson.M{"sessionId": sessionID}, findOpts)
	if err != nil {
		return nil, errors.Wrap(err, "find rows")
	}
	defer cursor.Close(ctx)

	var rows []models.ImportRow
	for cursor.Next(ctx) {
		var r models.ImportRow
		if err := cursor.Decode(&r); err != nil {
			return nil, errors.Wrap(err, "decode row")
		}
		rows = append(rows, r)
	}
	return rows, errors.Wrap(cursor.Err(), "iterate rows")
}

func (m *MongoRowStore) CountRows(ctx context.Context, sessionID int64) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"sessionId": sessionID})
	return n, errors.Wrap(err, "count rows")
}

func (m *MongoRowStore) DeleteRows(ctx context.Context, sessionID int64) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{"sessionId": sessionID})
	return errors.Wrap(err, "delete rows")
}
