package mongorepo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
)

// userDoc omits sapId when empty so the partial unique index ignores it.
type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Phone     string             `bson:"phone"`
	SAPID     string             `bson:"sapId,omitempty"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d userDoc) model() model.User {
	return model.User{
		ID: d.ID.Hex(), Name: d.Name, Email: d.Email, Phone: d.Phone, SAPID: d.SAPID,
		PasswordHash: d.Password, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func mapUserDup(err error) error {
	if idx, ok := duplicateIndex(err); ok {
		if idx == "uniq_sap_id" {
			return repository.ErrSAPIDExists
		}
		return repository.ErrEmailExists
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	c, err := s.coll(ctx, usersCollection)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Email:     strings.ToLower(strings.TrimSpace(u.Email)),
		Phone:     u.Phone,
		SAPID:     u.SAPID,
		Password:  u.PasswordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := c.InsertOne(ctx, doc); err != nil {
		return mapUserDup(err)
	}
	*u = doc.model()
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *Store) UserByID(ctx context.Context, id string) (model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.User{}, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (model.User, error) {
	c, err := s.coll(ctx, usersCollection)
	if err != nil {
		return model.User{}, err
	}
	var doc userDoc
	if err := c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return model.User{}, notFound(err)
	}
	return doc.model(), nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return out, nil
	}
	c, err := s.coll(ctx, usersCollection)
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID.Hex()] = d.model()
	}
	return out, nil
}

// UpdateUser applies the partial update atomically. Clearing the SAP id
// unsets the field so the partial unique index stops covering it.
func (s *Store) UpdateUser(ctx context.Context, id string, upd model.ProfileUpdate) (model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.User{}, err
	}
	c, err := s.coll(ctx, usersCollection)
	if err != nil {
		return model.User{}, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	update := bson.M{"$set": set}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.SAPID != nil {
		if *upd.SAPID == "" {
			update["$unset"] = bson.M{"sapId": ""}
		} else {
			set["sapId"] = *upd.SAPID
		}
	}
	var doc userDoc
	err = c.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return model.User{}, mapUserDup(notFound(err))
	}
	return doc.model(), nil
}
