package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/pliu/quickchat/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	userCollection    = "users"
	messageCollection = "messages"
	counterCollection = "counters"
)

// MongoStore implements store.Store on a MongoDB database. Numeric ids come
// from an atomic counter document per collection, so message ids keep the
// monotonic ordering guarantee of the SQL store.
type MongoStore struct {
	db *mongo.Database
}

func New(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{db: client.Database(dbName)}, nil
}

func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(counterCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	id, err := s.nextID(ctx, userCollection)
	if err != nil {
		return err
	}
	user.ID = id
	_, err = s.db.Collection(userCollection).InsertOne(ctx, user)
	return err
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(userCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.Collection(userCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetUsersExcept(ctx context.Context, id int64) ([]models.User, error) {
	cursor, err := s.db.Collection(userCollection).Find(
		ctx,
		bson.M{"_id": bson.M{"$ne": id}},
		options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoStore) VerifyUser(ctx context.Context, token string) error {
	result, err := s.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"verification_token": token},
		bson.M{"$set": bson.M{"is_verified": true, "verification_token": ""}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id int64, fullName, bio, profilePic string) error {
	_, err := s.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"full_name": fullName, "bio": bio, "profile_pic": profilePic}},
	)
	return err
}

func (s *MongoStore) SaveMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	id, err := s.nextID(ctx, messageCollection)
	if err != nil {
		return nil, err
	}
	saved := *msg
	saved.ID = id
	saved.Seen = false
	saved.CreatedAt = time.Now().UTC()
	if _, err := s.db.Collection(messageCollection).InsertOne(ctx, saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *MongoStore) GetConversation(ctx context.Context, userID, otherID int64) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID, "receiver_id": otherID},
		bson.M{"sender_id": otherID, "receiver_id": userID},
	}}
	cursor, err := s.db.Collection(messageCollection).Find(
		ctx,
		filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MongoStore) CountUnseen(ctx context.Context, senderID, receiverID int64) (int, error) {
	count, err := s.db.Collection(messageCollection).CountDocuments(
		ctx,
		bson.M{"sender_id": senderID, "receiver_id": receiverID, "seen": false},
	)
	return int(count), err
}

func (s *MongoStore) MarkSeen(ctx context.Context, id int64) error {
	_, err := s.db.Collection(messageCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"seen": true}},
	)
	return err
}

func (s *MongoStore) MarkManySeen(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Collection(messageCollection).UpdateMany(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"seen": true}},
	)
	return err
}
