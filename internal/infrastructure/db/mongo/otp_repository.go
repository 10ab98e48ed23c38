package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

const collectionOTPTokens = "otp_tokens"

// OTPRepository implements ports.OTPRepository. Expired documents are
// removed by a TTL index.
type OTPRepository struct {
	col *mongo.Collection
}

func NewOTPRepository(db *mongo.Database) *OTPRepository {
	return &OTPRepository{col: db.Collection(collectionOTPTokens)}
}

type otpDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId"`
	Type      string             `bson:"type"`
	CodeHash  string             `bson:"codeHash"`
	ExpiresAt time.Time          `bson:"expiresAt"`
	UsedAt    *time.Time         `bson:"usedAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d otpDocument) toDomain() *domain.OTPToken {
	return &domain.OTPToken{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Purpose:   domain.OTPPurpose(d.Type),
		CodeHash:  d.CodeHash,
		ExpiresAt: d.ExpiresAt,
		UsedAt:    d.UsedAt,
		CreatedAt: d.CreatedAt,
	}
}

func (r *OTPRepository) Create(ctx context.Context, otp *domain.OTPToken) (*domain.OTPToken, error) {
	uid, err := primitive.ObjectIDFromHex(otp.UserID)
	if err != nil {
		return nil, fmt.Errorf("otp user id: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := otpDocument{
		UserID:    uid,
		Type:      string(otp.Purpose),
		CodeHash:  otp.CodeHash,
		ExpiresAt: otp.ExpiresAt,
		CreatedAt: otp.CreatedAt,
		UpdatedAt: otp.CreatedAt,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert otp: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

func (r *OTPRepository) InvalidateActive(ctx context.Context, userID string, purpose domain.OTPPurpose, now time.Time) (int64, error) {
	return r.markUsed(ctx, userID, purpose, now, bson.M{"expiresAt": bson.M{"$gt": now}})
}

func (r *OTPRepository) InvalidateUnused(ctx context.Context, userID string, purpose domain.OTPPurpose, now time.Time) (int64, error) {
	return r.markUsed(ctx, userID, purpose, now, nil)
}

func (r *OTPRepository) markUsed(ctx context.Context, userID string, purpose domain.OTPPurpose, now time.Time, extra bson.M) (int64, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"userId": uid, "type": string(purpose), "usedAt": bson.M{"$exists": false}}
	for k, v := range extra {
		filter[k] = v
	}
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"usedAt": now, "updatedAt": now}})
	if err != nil {
		return 0, fmt.Errorf("invalidate otps: %w", err)
	}
	return res.ModifiedCount, nil
}

// Consume finds and marks the code used in one atomic operation, so two
// concurrent verifications cannot both succeed.
func (r *OTPRepository) Consume(ctx context.Context, userID string, purpose domain.OTPPurpose, codeHash string, now time.Time) (*domain.OTPToken, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrOTPNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"userId":    uid,
		"type":      string(purpose),
		"codeHash":  codeHash,
		"usedAt":    bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"usedAt": now, "updatedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc otpDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	return doc.toDomain(), nil
}

// EnsureIndexes creates the TTL and lookup indexes on otp_tokens.
func (r *OTPRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
