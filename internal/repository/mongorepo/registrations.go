package mongorepo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
)

type registrationDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	UserID           primitive.ObjectID `bson:"userId"`
	UserName         string             `bson:"userName"`
	UserEmail        string             `bson:"userEmail"`
	UserPhone        string             `bson:"userPhone"`
	UserSAPID        string             `bson:"userSapId,omitempty"`
	Events           []model.EventLine  `bson:"events"`
	TotalAmount      int64              `bson:"totalAmount"`
	OrderID          string             `bson:"orderId"`
	PaymentStatus    string             `bson:"paymentStatus"`
	PaymentSessionID string             `bson:"paymentSessionId,omitempty"`
	PaymentDetails   bson.M             `bson:"paymentDetails,omitempty"`
	Attempts         int                `bson:"reconcileAttempts"`
	LastCheckedAt    *time.Time         `bson:"lastCheckedAt,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d registrationDoc) model() model.Registration {
	return model.Registration{
		ID:                d.ID.Hex(),
		UserID:            d.UserID.Hex(),
		UserName:          d.UserName,
		UserEmail:         d.UserEmail,
		UserPhone:         d.UserPhone,
		UserSAPID:         d.UserSAPID,
		Events:            d.Events,
		TotalAmount:       d.TotalAmount,
		OrderID:           d.OrderID,
		PaymentStatus:     model.PaymentStatus(d.PaymentStatus),
		PaymentSessionID:  d.PaymentSessionID,
		PaymentDetails:    d.PaymentDetails,
		ReconcileAttempts: d.Attempts,
		LastCheckedAt:     d.LastCheckedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (s *Store) CreateRegistration(ctx context.Context, r *model.Registration) error {
	uid, err := objectID(r.UserID)
	if err != nil {
		return err
	}
	c, err := s.coll(ctx, registrationsCollection)
	if err != nil {
		return err
	}
	if r.PaymentStatus == "" {
		r.PaymentStatus = model.PaymentPending
	}
	now := time.Now().UTC()
	doc := registrationDoc{
		ID:               primitive.NewObjectID(),
		UserID:           uid,
		UserName:         r.UserName,
		UserEmail:        r.UserEmail,
		UserPhone:        r.UserPhone,
		UserSAPID:        r.UserSAPID,
		Events:           r.Events,
		TotalAmount:      r.TotalAmount,
		OrderID:          r.OrderID,
		PaymentStatus:    string(r.PaymentStatus),
		PaymentSessionID: r.PaymentSessionID,
		PaymentDetails:   r.PaymentDetails,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := c.InsertOne(ctx, doc); err != nil {
		if _, dup := duplicateIndex(err); dup {
			return repository.ErrOrderExists
		}
		return err
	}
	*r = doc.model()
	return nil
}

func (s *Store) RegistrationByOrderID(ctx context.Context, orderID string) (model.Registration, error) {
	c, err := s.coll(ctx, registrationsCollection)
	if err != nil {
		return model.Registration{}, err
	}
	var doc registrationDoc
	if err := c.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&doc); err != nil {
		return model.Registration{}, notFound(err)
	}
	return doc.model(), nil
}

func (s *Store) RegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, nil
	}
	return s.findRegistrations(ctx, bson.M{"userId": uid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *Store) AllRegistrations(ctx context.Context) ([]model.Registration, error) {
	return s.findRegistrations(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// PendingRegistrations sorts a missing lastCheckedAt ahead of any date.
func (s *Store) PendingRegistrations(ctx context.Context, olderThan time.Time, limit int) ([]model.Registration, error) {
	return s.findRegistrations(ctx,
		bson.M{"paymentStatus": string(model.PaymentPending), "createdAt": bson.M{"$lt": olderThan.UTC()}},
		options.Find().
			SetSort(bson.D{{Key: "lastCheckedAt", Value: 1}, {Key: "createdAt", Value: 1}}).
			SetLimit(int64(limit)))
}

func (s *Store) MarkChecked(ctx context.Context, orderID string, at time.Time) (model.Registration, error) {
	c, err := s.coll(ctx, registrationsCollection)
	if err != nil {
		return model.Registration{}, err
	}
	var doc registrationDoc
	err = c.FindOneAndUpdate(ctx,
		bson.M{"orderId": orderID, "paymentStatus": string(model.PaymentPending)},
		bson.M{"$set": bson.M{"lastCheckedAt": at.UTC()}, "$inc": bson.M{"reconcileAttempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		if _, err := s.RegistrationByOrderID(ctx, orderID); err != nil {
			return model.Registration{}, err
		}
		return model.Registration{}, repository.ErrStaleWrite
	}
	if err != nil {
		return model.Registration{}, err
	}
	return doc.model(), nil
}

func (s *Store) findRegistrations(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Registration, error) {
	c, err := s.coll(ctx, registrationsCollection)
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []registrationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Registration, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// UpdatePayment filters on the expected status so concurrent verifiers
// cannot both apply a transition.
func (s *Store) UpdatePayment(ctx context.Context, orderID string, upd model.PaymentUpdate) (model.Registration, error) {
	c, err := s.coll(ctx, registrationsCollection)
	if err != nil {
		return model.Registration{}, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Status != nil {
		set["paymentStatus"] = string(*upd.Status)
	}
	if upd.PaymentSessionID != nil {
		set["paymentSessionId"] = *upd.PaymentSessionID
	}
	if upd.Details != nil {
		set["paymentDetails"] = upd.Details
	}
	var doc registrationDoc
	err = c.FindOneAndUpdate(ctx,
		bson.M{"orderId": orderID, "paymentStatus": string(upd.From)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		if _, err := s.RegistrationByOrderID(ctx, orderID); err != nil {
			return model.Registration{}, err
		}
		return model.Registration{}, repository.ErrStaleWrite
	}
	if err != nil {
		return model.Registration{}, err
	}
	return doc.model(), nil
}

func (s *Store) HasPaidRegistration(ctx context.Context, userID, eventID string) (bool, error) {
	uid, err := objectID(userID)
	if err != nil {
		return false, nil
	}
	c, err := s.coll(ctx, registrationsCollection)
	if err != nil {
		return false, err
	}
	n, err := c.CountDocuments(ctx, bson.M{
		"userId":         uid,
		"paymentStatus":  string(model.PaymentSuccess),
		"events.eventId": eventID,
	}, options.Count().SetLimit(1))
	return n > 0, err
}
