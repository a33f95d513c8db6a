// Package mongorepo is the MongoDB implementation of repository.Store.
// Uniqueness lives in named unique indexes created by EnsureIndexes; a
// duplicate-key error is mapped back to the repository sentinel by
// index name.
package mongorepo

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ambiora/techfest-backend/internal/database"
	"github.com/ambiora/techfest-backend/internal/repository"
)

const (
	usersCollection         = "users"
	registrationsCollection = "eventregistrations"
	teamsCollection         = "teams"
)

type Store struct {
	conn *database.MongoConnector
}

// New wires the store to conn and makes index creation part of the
// first successful connect.
func New(conn *database.MongoConnector) *Store {
	if conn.OnConnect == nil {
		conn.OnConnect = EnsureIndexes
	}
	return &Store{conn: conn}
}

func (s *Store) Ping(ctx context.Context) error  { return s.conn.Ping(ctx) }
func (s *Store) Close(ctx context.Context) error { return s.conn.Close(ctx) }

func (s *Store) coll(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// EnsureIndexes creates every index the store relies on. CreateMany is
// a no-op for indexes that already exist with the same options.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_email").SetUnique(true)},
			{
				Keys: bson.D{{Key: "sapId", Value: 1}},
				Options: options.Index().SetName("uniq_sap_id").SetUnique(true).
					SetPartialFilterExpression(bson.M{"sapId": bson.M{"$type": "string"}}),
			},
		},
		registrationsCollection: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetName("uniq_order_id").SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_user_created")},
			{Keys: bson.D{{Key: "paymentStatus", Value: 1}, {Key: "createdAt", Value: 1}}, Options: options.Index().SetName("idx_status_created")},
			{Keys: bson.D{{Key: "paymentStatus", Value: 1}, {Key: "lastCheckedAt", Value: 1}, {Key: "createdAt", Value: 1}}, Options: options.Index().SetName("idx_status_checked")},
		},
		teamsCollection: {
			{Keys: bson.D{{Key: "inviteCode", Value: 1}}, Options: options.Index().SetName("uniq_invite_code").SetUnique(true)},
			{Keys: bson.D{{Key: "leaderId", Value: 1}, {Key: "eventId", Value: 1}}, Options: options.Index().SetName("uniq_leader_event").SetUnique(true)},
			{Keys: bson.D{{Key: "members.userId", Value: 1}}, Options: options.Index().SetName("idx_member_user")},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

// duplicateIndex returns the name fragment of the violated unique index.
func duplicateIndex(err error) (string, bool) {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return "", false
	}
	msg := err.Error()
	for _, name := range []string{"uniq_sap_id", "uniq_email", "uniq_order_id", "uniq_invite_code", "uniq_leader_event"} {
		if strings.Contains(msg, name) {
			return name, true
		}
	}
	return "", true
}

// objectID parses a hex id; malformed ids can never match a document.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

func notFound(err error) error {
	if err == mongo.ErrNoDocuments {
		return repository.ErrNotFound
	}
	return err
}

var _ repository.Store = (*Store)(nil)
