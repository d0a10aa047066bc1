// Package mongodb implements the chat store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/freshfold/support-chat/pkg/logger"
)

// Collection names.
const (
	ColThreads       = "chat_threads"
	ColMessages      = "chat_messages"
	ColAccounts      = "users"
	ColBranches      = "branches"
	ColNotifications = "notifications"
	ColBroadcasts    = "broadcasts"
)

// Config holds MongoDB connection configuration.
type Config struct {
	URI      string
	Database string
}

// Connect opens a pooled client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("database connection URI is empty")
	}

	clientOptions := options.Client().ApplyURI(cfg.URI).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("connected to MongoDB", zap.String("database", cfg.Database))
	return client, nil
}

// Disconnect closes the client.
func Disconnect(ctx context.Context, client *mongo.Client, log *logger.Logger) {
	if err := client.Disconnect(ctx); err != nil {
		log.Error("failed to disconnect MongoDB client", zap.Error(err))
		return
	}
	log.Info("disconnected from MongoDB")
}

// EnsureIndexes creates the indexes the chat store relies on. Existing
// indexes with identical definitions are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		ColThreads: {
			{
				Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "branchId", Value: 1}},
				Options: options.Index().SetName("thread_customer_branch").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "branchId", Value: 1}, {Key: "lastMessageAt", Value: -1}},
				Options: options.Index().SetName("thread_branch_activity"),
			},
			{
				Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "lastMessageAt", Value: -1}},
				Options: options.Index().SetName("thread_customer_activity"),
			},
		},
		ColMessages: {
			{
				Keys:    bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: 1}},
				Options: options.Index().SetName("message_thread_created"),
			},
			{
				Keys: bson.D{
					{Key: "threadId", Value: 1},
					{Key: "senderId", Value: 1},
					{Key: "clientMessageId", Value: 1},
				},
				Options: options.Index().
					SetName("message_idempotency_key").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"clientMessageId": bson.M{"$type": "string"}}),
			},
		},
		ColAccounts: {
			{
				Keys:    bson.D{{Key: "role", Value: 1}},
				Options: options.Index().SetName("user_role"),
			},
		},
		ColNotifications: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("notification_user_created"),
			},
		},
	}

	for col, models := range specs {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", col, err)
		}
	}
	return nil
}
