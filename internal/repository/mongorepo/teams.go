package mongorepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
)

type memberDoc struct {
	UserID   primitive.ObjectID `bson:"userId"`
	Name     string             `bson:"name"`
	Email    string             `bson:"email"`
	SAPID    string             `bson:"sapId"`
	JoinedAt time.Time          `bson:"joinedAt"`
	Status   string             `bson:"status"`
}

type teamDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	EventID    string             `bson:"eventId"`
	LeaderID   primitive.ObjectID `bson:"leaderId"`
	InviteCode string             `bson:"inviteCode"`
	Members    []memberDoc        `bson:"members"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d teamDoc) model() model.Team {
	t := model.Team{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		EventID:    d.EventID,
		LeaderID:   d.LeaderID.Hex(),
		InviteCode: d.InviteCode,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Members:    make([]model.TeamMember, 0, len(d.Members)),
	}
	for _, m := range d.Members {
		t.Members = append(t.Members, model.TeamMember{
			UserID: m.UserID.Hex(), Name: m.Name, Email: m.Email, SAPID: m.SAPID,
			JoinedAt: m.JoinedAt, Status: model.MemberStatus(m.Status),
		})
	}
	return t
}

func toMemberDoc(m model.TeamMember) (memberDoc, error) {
	uid, err := objectID(m.UserID)
	if err != nil {
		return memberDoc{}, err
	}
	return memberDoc{UserID: uid, Name: m.Name, Email: m.Email, SAPID: m.SAPID, JoinedAt: m.JoinedAt.UTC(), Status: string(m.Status)}, nil
}

func (s *Store) CreateTeam(ctx context.Context, t *model.Team) error {
	leader, err := objectID(t.LeaderID)
	if err != nil {
		return err
	}
	c, err := s.coll(ctx, teamsCollection)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := teamDoc{
		ID:         primitive.NewObjectID(),
		Name:       t.Name,
		EventID:    t.EventID,
		LeaderID:   leader,
		InviteCode: t.InviteCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, m := range t.Members {
		md, err := toMemberDoc(m)
		if err != nil {
			return err
		}
		doc.Members = append(doc.Members, md)
	}
	if _, err := c.InsertOne(ctx, doc); err != nil {
		if idx, dup := duplicateIndex(err); dup {
			if idx == "uniq_invite_code" {
				return repository.ErrInviteCodeTaken
			}
			return repository.ErrTeamExists
		}
		return err
	}
	*t = doc.model()
	return nil
}

func (s *Store) TeamByID(ctx context.Context, id string) (model.Team, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.Team{}, err
	}
	return s.findTeam(ctx, bson.M{"_id": oid})
}

func (s *Store) TeamByInviteCode(ctx context.Context, code string) (model.Team, error) {
	return s.findTeam(ctx, bson.M{"inviteCode": code})
}

func (s *Store) findTeam(ctx context.Context, filter bson.M) (model.Team, error) {
	c, err := s.coll(ctx, teamsCollection)
	if err != nil {
		return model.Team{}, err
	}
	var doc teamDoc
	if err := c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return model.Team{}, notFound(err)
	}
	return doc.model(), nil
}

func (s *Store) TeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, nil
	}
	return s.findTeams(ctx, bson.M{"$or": bson.A{bson.M{"leaderId": uid}, bson.M{"members.userId": uid}}})
}

func (s *Store) AllTeams(ctx context.Context) ([]model.Team, error) {
	return s.findTeams(ctx, bson.M{})
}

func (s *Store) findTeams(ctx context.Context, filter bson.M) ([]model.Team, error) {
	c, err := s.coll(ctx, teamsCollection)
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []teamDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Team, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// AddMember pushes only when the user is not already in members and a
// seat is free, in a single document update.
func (s *Store) AddMember(ctx context.Context, teamID string, m model.TeamMember, maxMembers int) (model.Team, error) {
	oid, err := objectID(teamID)
	if err != nil {
		return model.Team{}, err
	}
	md, err := toMemberDoc(m)
	if err != nil {
		return model.Team{}, err
	}
	c, err := s.coll(ctx, teamsCollection)
	if err != nil {
		return model.Team{}, err
	}
	filter := bson.M{"_id": oid, "members.userId": bson.M{"$ne": md.UserID}}
	if maxMembers > 0 {
		filter[fmt.Sprintf("members.%d", maxMembers-1)] = bson.M{"$exists": false}
	}
	var doc teamDoc
	err = c.FindOneAndUpdate(ctx, filter,
		bson.M{"$push": bson.M{"members": md}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		t, err := s.TeamByID(ctx, teamID)
		if err != nil {
			return model.Team{}, err
		}
		if t.HasMember(m.UserID) {
			return model.Team{}, repository.ErrAlreadyMember
		}
		return model.Team{}, repository.ErrTeamFull
	}
	if err != nil {
		return model.Team{}, err
	}
	return doc.model(), nil
}

func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) (model.Team, error) {
	oid, err := objectID(teamID)
	if err != nil {
		return model.Team{}, err
	}
	uid, err := objectID(userID)
	if err != nil {
		return model.Team{}, repository.ErrMemberNotFound
	}
	c, err := s.coll(ctx, teamsCollection)
	if err != nil {
		return model.Team{}, err
	}
	var doc teamDoc
	err = c.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "members.userId": uid},
		bson.M{"$pull": bson.M{"members": bson.M{"userId": uid}}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		if _, err := s.TeamByID(ctx, teamID); err != nil {
			return model.Team{}, err
		}
		return model.Team{}, repository.ErrMemberNotFound
	}
	if err != nil {
		return model.Team{}, err
	}
	return doc.model(), nil
}
