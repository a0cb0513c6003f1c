package auth

import (
	"context"
	"time"

	"barberia-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository lookups of a missing record return mongo.ErrNoDocuments.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	InsertUser(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, username string) (models.User, error)
}

type SessionRepository interface {
	InsertSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	DeactivateSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, username string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type MongoRepository struct {
	users    *mongo.Collection
	sessions *mongo.Collection
}

func NewRepository(users, sessions *mongo.Collection) *MongoRepository {
	return &MongoRepository{users: users, sessions: sessions}
}

func (r *MongoRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	if err := r.users.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return models.NormalizeUser(u), nil
}

func (r *MongoRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.User, 0)
	for cursor.Next(ctx) {
		var u models.User
		if err := cursor.Decode(&u); err != nil {
			return nil, err
		}
		items = append(items, models.NormalizeUser(u))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) InsertUser(ctx context.Context, u models.User) error {
	_, err := r.users.InsertOne(ctx, u)
	return err
}

func (r *MongoRepository) DeleteUser(ctx context.Context, username string) (models.User, error) {
	var deleted models.User
	if err := r.users.FindOneAndDelete(ctx, bson.M{"username": username}).Decode(&deleted); err != nil {
		return models.User{}, err
	}
	return deleted, nil
}

func (r *MongoRepository) InsertSession(ctx context.Context, s models.Session) error {
	_, err := r.sessions.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) GetSession(ctx context.Context, id string) (models.Session, error) {
	var s models.Session
	if err := r.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return models.Session{}, err
	}
	return s, nil
}

func (r *MongoRepository) DeactivateSession(ctx context.Context, id string) error {
	_, err := r.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false}})
	return err
}

func (r *MongoRepository) DeleteUserSessions(ctx context.Context, username string) (int64, error) {
	res, err := r.sessions.DeleteMany(ctx, bson.M{"username": username})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"expiresAt": bson.M{"$lte": now}},
		bson.M{"active": false},
	}}
	res, err := r.sessions.DeleteMany(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
