package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client *mongo.Client

	threads       *mongo.Collection
	messages      *mongo.Collection
	accounts      *mongo.Collection
	branches      *mongo.Collection
	notifications *mongo.Collection
	broadcasts    *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// NewStore binds the collections of db.
func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:        client,
		threads:       db.Collection(ColThreads),
		messages:      db.Collection(ColMessages),
		accounts:      db.Collection(ColAccounts),
		branches:      db.Collection(ColBranches),
		notifications: db.Collection(ColNotifications),
		broadcasts:    db.Collection(ColBroadcasts),
	}
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// GetOrCreateThread upserts the (customerID, branchID) thread.
func (s *Store) GetOrCreateThread(ctx context.Context, customerID, branchID string, now time.Time) (*model.Thread, bool, error) {
	fresh := model.NewThread(uuid.Must(uuid.NewV7()).String(), customerID, branchID, now)
	onInsert, err := insertFields(fresh, "customerId", "branchId")
	if err != nil {
		return nil, false, err
	}

	filter := bson.M{"customerId": customerID, "branchId": branchID}
	update := bson.M{"$setOnInsert": onInsert}
	opts := afterUpdate().SetUpsert(true)

	var t model.Thread
	err = s.threads.FindOneAndUpdate(ctx, filter, update, opts).Decode(&t)
	if mongo.IsDuplicateKeyError(err) {
		// Concurrent upsert won the unique index; the thread now exists.
		err = s.threads.FindOne(ctx, filter).Decode(&t)
		if err != nil {
			return nil, false, convertError(err)
		}
		return &t, false, nil
	}
	if err != nil {
		return nil, false, convertError(err)
	}
	return &t, t.ID == fresh.ID, nil
}

// insertFields marshals v to a document without the named keys.
func insertFields(v any, drop ...string) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	for _, k := range drop {
		delete(doc, k)
	}
	return doc, nil
}

// GetThread retrieves a thread by ID.
func (s *Store) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	var t model.Thread
	if err := s.threads.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, convertError(err)
	}
	return &t, nil
}

// ListThreadsByCustomer returns a customer's threads, newest activity first.
func (s *Store) ListThreadsByCustomer(ctx context.Context, customerID string) ([]model.Thread, error) {
	return s.findThreads(ctx, bson.M{"customerId": customerID})
}

// ListThreadsByBranch returns a branch's visible threads, newest activity first.
func (s *Store) ListThreadsByBranch(ctx context.Context, branchID string, status model.ThreadStatus) ([]model.Thread, error) {
	return s.findThreads(ctx, branchThreadsFilter(branchID, status))
}

func (s *Store) findThreads(ctx context.Context, filter bson.M) ([]model.Thread, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.threads.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find threads: %w", err)
	}
	out := []model.Thread{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode threads: %w", err)
	}
	return out, nil
}

// UpdateThread applies u atomically when cond holds.
func (s *Store) UpdateThread(ctx context.Context, id string, cond store.ThreadCondition, u store.ThreadUpdate) (*model.Thread, error) {
	if u.Empty() {
		t, err := s.GetThread(ctx, id)
		if err != nil {
			return nil, err
		}
		if !cond.Matches(t) {
			return nil, store.ErrPreconditionFailed
		}
		return t, nil
	}

	var t model.Thread
	err := s.threads.FindOneAndUpdate(ctx, threadFilter(id, cond), threadUpdateDoc(u), afterUpdate()).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if cond == (store.ThreadCondition{}) {
			return nil, store.ErrNotFound
		}
		n, cerr := s.threads.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check thread: %w", cerr)
		}
		if n == 0 {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrPreconditionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	return &t, nil
}

// AppendMessage inserts m; the partial unique index rejects a reused key.
func (s *Store) AppendMessage(ctx context.Context, m *model.Message) error {
	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return convertError(err)
	}
	return nil
}

// FindMessageByClientID looks a message up by its idempotency key.
func (s *Store) FindMessageByClientID(ctx context.Context, threadID, senderID, clientMessageID string) (*model.Message, error) {
	filter := bson.M{"threadId": threadID, "senderId": senderID, "clientMessageId": clientMessageID}
	var m model.Message
	if err := s.messages.FindOne(ctx, filter).Decode(&m); err != nil {
		return nil, convertError(err)
	}
	return &m, nil
}

// ListMessages returns the ledger in creation order. IDs are UUIDv7, so
// sorting by _id breaks timestamp ties in insertion order.
func (s *Store) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"threadId": threadID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	out := []model.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return out, nil
}

// MarkMessagesRead stamps readAt on role's unread messages.
func (s *Store) MarkMessagesRead(ctx context.Context, threadID string, role model.SenderRole, at time.Time) (int64, error) {
	res, err := s.messages.UpdateMany(ctx,
		bson.M{"threadId": threadID, "senderRole": role, "readAt": nil},
		bson.M{"$set": bson.M{"readAt": at}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.ModifiedCount, nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := s.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, convertError(err)
	}
	return &a, nil
}

// EnsureAccount inserts a unless an account with its ID exists.
func (s *Store) EnsureAccount(ctx context.Context, a *model.Account) error {
	if _, err := s.accounts.InsertOne(ctx, a); err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

// ListAgentsForBranch returns active agents covering branchID.
func (s *Store) ListAgentsForBranch(ctx context.Context, branchID string) ([]model.Account, error) {
	return s.findAccounts(ctx, branchAgentsFilter(branchID))
}

// ListCustomers returns every customer account.
func (s *Store) ListCustomers(ctx context.Context) ([]model.Account, error) {
	return s.findAccounts(ctx, bson.M{"role": model.RoleCustomer})
}

func (s *Store) findAccounts(ctx context.Context, filter bson.M) ([]model.Account, error) {
	cur, err := s.accounts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	out := []model.Account{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return out, nil
}

// SetDeviceTokens replaces an account's push registrations.
func (s *Store) SetDeviceTokens(ctx context.Context, id string, tokens []model.DeviceToken) error {
	return s.setAccountField(ctx, id, "deviceTokens", tokens)
}

// SetPreferences replaces an account's stored notification preferences.
func (s *Store) SetPreferences(ctx context.Context, id string, prefs map[string]bool) error {
	return s.setAccountField(ctx, id, "notificationPreferences", prefs)
}

func (s *Store) setAccountField(ctx context.Context, id, field string, value any) error {
	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetBranch retrieves a branch by ID.
func (s *Store) GetBranch(ctx context.Context, id string) (*model.Branch, error) {
	var b model.Branch
	if err := s.branches.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, convertError(err)
	}
	return &b, nil
}

// EnsureBranch inserts b unless a branch with its ID exists.
func (s *Store) EnsureBranch(ctx context.Context, b *model.Branch) error {
	if _, err := s.branches.InsertOne(ctx, b); err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to ensure branch: %w", err)
	}
	return nil
}

// InsertNotifications stores ns in one batch.
func (s *Store) InsertNotifications(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ns))
	for i := range ns {
		docs[i] = ns[i]
	}
	if _, err := s.notifications.InsertMany(ctx, docs); err != nil {
		return convertError(err)
	}
	return nil
}

// GetNotification retrieves a notification by ID.
func (s *Store) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := s.notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, convertError(err)
	}
	return &n, nil
}

// ListNotifications returns a user's newest notifications first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.notifications.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find notifications: %w", err)
	}
	out := []model.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	err := s.notifications.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isRead": true}},
		afterUpdate(),
	).Decode(&n)
	if err != nil {
		return nil, convertError(err)
	}
	return &n, nil
}

// MarkAllNotificationsRead flags every unread notification of userID.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

// InsertBroadcast stores b.
func (s *Store) InsertBroadcast(ctx context.Context, b *model.Broadcast) error {
	if _, err := s.broadcasts.InsertOne(ctx, b); err != nil {
		return convertError(err)
	}
	return nil
}
