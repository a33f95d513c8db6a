package database

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// lazyClient builds a client without contacting a server.
func lazyClient(t *testing.T) *mongo.Client {
	t.Helper()
	c, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("mongo.Connect failed: %v", err)
	}
	return c
}

func TestEnsureConnectedRetriesFailedHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dials, hooks := 0, 0
	m := NewMongoConnector("", "fest")
	m.Dial = func(context.Context) (*mongo.Client, error) {
		dials++
		return lazyClient(t), nil
	}
	m.OnConnect = func(context.Context, *mongo.Database) error {
		hooks++
		if hooks == 1 {
			return errors.New("index build failed")
		}
		return nil
	}

	if _, err := m.EnsureConnected(ctx); err == nil {
		t.Fatal("Expected the hook failure to be returned")
	}
	db, err := m.EnsureConnected(ctx)
	if err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if db.Name() != "fest" {
		t.Errorf("Expected database fest, got %s", db.Name())
	}
	if _, err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if dials != 2 || hooks != 2 {
		t.Errorf("Expected 2 dials and 2 hook runs, got %d and %d", dials, hooks)
	}
	_ = m.Close(ctx)
}

func TestEnsureConnectedDialError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dials := 0
	m := NewMongoConnector("", "fest")
	m.Dial = func(context.Context) (*mongo.Client, error) {
		dials++
		return nil, errors.New("no reachable servers")
	}
	for i := 0; i < 2; i++ {
		if _, err := m.EnsureConnected(ctx); err == nil {
			t.Fatal("Expected dial error")
		}
	}
	if dials != 2 {
		t.Errorf("Expected every call to redial, got %d dials", dials)
	}
}

func TestEnsureConnectedAfterClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMongoConnector("", "fest")
	m.Dial = func(context.Context) (*mongo.Client, error) { return lazyClient(t), nil }
	if _, err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := m.EnsureConnected(ctx); !errors.Is(err, ErrConnectorClosed) {
		t.Errorf("Expected ErrConnectorClosed, got %v", err)
	}
}
