package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-night-service/internal/domain"
)

const collectionName = "session_records"

type recordDocument struct {
	Name      string    `bson:"_id"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// RecordStore keeps one document per record in the session_records collection.
// SaveMany uses a multi-document transaction, which needs a replica set or sharded cluster.
type RecordStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials uri and returns a store on database dbName.
func Connect(ctx context.Context, uri, dbName string) (*RecordStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return NewRecordStore(client, dbName), nil
}

func NewRecordStore(client *mongo.Client, dbName string) *RecordStore {
	return &RecordStore{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
	}
}

func (s *RecordStore) Load(ctx context.Context, record domain.Record) ([]byte, error) {
	var doc recordDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": string(record)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", record, err)
	}
	return []byte(doc.Data), nil
}

func (s *RecordStore) Save(ctx context.Context, record domain.Record, data []byte) error {
	return s.replace(ctx, record, data)
}

func (s *RecordStore) SaveMany(ctx context.Context, records map[domain.Record][]byte) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for record, data := range records {
			if err := s.replace(sc, record, data); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Close disconnects the underlying client.
func (s *RecordStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *RecordStore) replace(ctx context.Context, record domain.Record, data []byte) error {
	doc := recordDocument{Name: string(record), Data: string(data), UpdatedAt: time.Now().UTC()}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save record %s: %w", record, err)
	}
	return nil
}
