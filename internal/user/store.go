// Package user はMongoDBのユーザーコレクションへのアクセスを提供します。
// ドメインロジックは持たず、作成と検索のみを担います。
package user

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName はユーザーを保存するコレクション名です。
const CollectionName = "users"

// User は永続化されるユーザーエンティティです。
// PasswordHash には平文ではなくbcryptダイジェストのみを保存します。
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
}

// Store はユーザーコレクションのアダプターです。
type Store struct {
	coll *mongo.Collection
}

// NewStore は Store を作成します。
func NewStore(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// Create はユーザーを1件挿入します。
// メールアドレスの一意性はこの層では強制しません。
func (s *Store) Create(ctx context.Context, u User) error {
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスが一致するユーザーをすべて返します。
// 0件・複数件の扱い（どちらも認証失敗）は呼び出し側の責務です。
func (s *Store) FindByEmail(ctx context.Context, email string) ([]User, error) {
	projection := bson.D{
		{Key: "username", Value: 1},
		{Key: "password", Value: 1},
		{Key: "email", Value: 1},
		{Key: "_id", Value: 1},
	}
	cursor, err := s.coll.Find(ctx, bson.M{"email": email}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("failed to query users by email: %w", err)
	}
	defer cursor.Close(ctx)

	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
