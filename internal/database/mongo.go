package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var ErrConnectorClosed = errors.New("mongo connector closed")

// MongoConnector owns one lazily established client for the lifetime of
// the process. EnsureConnected is safe to call on every request; only
// the first successful call dials.
type MongoConnector struct {
	uri    string
	dbName string

	mu     sync.Mutex
	client *mongo.Client
	closed bool

	// OnConnect runs once after the first successful connect, e.g. to
	// create indexes. A failure is returned to that caller and retried
	// on the next call.
	OnConnect func(ctx context.Context, db *mongo.Database) error

	// Dial opens and verifies a client. Nil dials the configured URI.
	Dial func(ctx context.Context) (*mongo.Client, error)
}

func NewMongoConnector(uri, dbName string) *MongoConnector {
	return &MongoConnector{uri: uri, dbName: dbName}
}

// EnsureConnected returns the database handle, connecting first if needed.
func (m *MongoConnector) EnsureConnected(ctx context.Context) (*mongo.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrConnectorClosed
	}
	if m.client != nil {
		return m.client.Database(m.dbName), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dial := m.Dial
	if dial == nil {
		dial = m.dialURI
	}
	client, err := dial(dialCtx)
	if err != nil {
		return nil, err
	}
	db := client.Database(m.dbName)
	if m.OnConnect != nil {
		if err := m.OnConnect(dialCtx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
	}
	m.client = client
	return db, nil
}

func (m *MongoConnector) dialURI(ctx context.Context) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(m.uri).
		SetMaxPoolSize(25).
		SetServerSelectionTimeout(5*time.Second).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Ping checks the live connection, connecting first if needed.
func (m *MongoConnector) Ping(ctx context.Context) error {
	db, err := m.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return db.Client().Ping(ctx, readpref.Primary())
}

func (m *MongoConnector) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
