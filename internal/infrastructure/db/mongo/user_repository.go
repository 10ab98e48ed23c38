package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository on the users collection.
// Field names match the documents written by earlier deployments.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type userDocument struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Email                string             `bson:"email"`
	Username             string             `bson:"username"`
	Password             string             `bson:"password,omitempty"`
	GoogleID             string             `bson:"googleId,omitempty"`
	FirstName            string             `bson:"firstname,omitempty"`
	LastName             string             `bson:"lastname,omitempty"`
	Avatar               string             `bson:"avatar,omitempty"`
	AuthProvider         string             `bson:"authProvider"`
	AppSource            string             `bson:"appSource"`
	RegisteredApps       []string           `bson:"registeredApps"`
	Role                 string             `bson:"role"`
	Plan                 string             `bson:"plan"`
	IsEmailVerified      bool               `bson:"isEmailVerified"`
	IsActive             bool               `bson:"isActive"`
	LastLogin            *time.Time         `bson:"lastLogin,omitempty"`
	ResetPasswordToken   string             `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time         `bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt"`
}

// toUserDocument also refreshes the cached authProvider.
func toUserDocument(u *domain.User) userDocument {
	apps := make([]string, 0, len(u.RegisteredApps))
	for _, a := range u.RegisteredApps {
		apps = append(apps, string(a))
	}
	return userDocument{
		Email:                u.Email,
		Username:             u.Username,
		Password:             u.PasswordHash,
		GoogleID:             u.GoogleID,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		Avatar:               u.Avatar,
		AuthProvider:         string(u.AuthProvider()),
		AppSource:            string(u.AppSource),
		RegisteredApps:       apps,
		Role:                 u.Role,
		Plan:                 u.Plan,
		IsEmailVerified:      u.IsEmailVerified,
		IsActive:             u.IsActive,
		LastLogin:            u.LastLogin,
		ResetPasswordToken:   u.ResetPasswordToken,
		ResetPasswordExpires: u.ResetPasswordExpires,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

// toDomain ignores the stored authProvider and repairs memberships of
// documents that predate registeredApps.
func (d userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:                   d.ID.Hex(),
		Email:                d.Email,
		Username:             d.Username,
		PasswordHash:         d.Password,
		GoogleID:             d.GoogleID,
		FirstName:            d.FirstName,
		LastName:             d.LastName,
		Avatar:               d.Avatar,
		AppSource:            domain.AppSource(d.AppSource),
		Role:                 d.Role,
		Plan:                 d.Plan,
		IsEmailVerified:      d.IsEmailVerified,
		IsActive:             d.IsActive,
		LastLogin:            d.LastLogin,
		ResetPasswordToken:   d.ResetPasswordToken,
		ResetPasswordExpires: d.ResetPasswordExpires,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	for _, a := range d.RegisteredApps {
		u.RegisterApp(domain.AppSource(a))
	}
	if u.AppSource != "" {
		u.RegisterApp(u.AppSource)
	}
	if u.ResetPasswordToken == "" || u.ResetPasswordExpires == nil {
		u.ClearResetToken()
	}
	return u
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*domain.User, error) {
	if googleID == "" {
		return r.FindByEmail(ctx, email)
	}
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"googleId": googleID},
		bson.M{"email": email},
	}})
}

func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	if googleID == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"googleId": googleID})
}

func (r *UserRepository) FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":   hash,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count username: %w", err)
	}
	return n > 0, nil
}

// Create inserts user and returns it with its generated id.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, toUserDocument(user))
	if err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	created := *user
	created.RegisteredApps = append([]domain.AppSource(nil), user.RegisteredApps...)
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

func (r *UserRepository) AddApp(ctx context.Context, id string, app domain.AppSource, now time.Time) (bool, error) {
	if !app.Valid() {
		return false, domain.ErrInvalidAppSource
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "registeredApps": bson.M{"$ne": string(app)}},
		bson.M{
			"$addToSet": bson.M{"registeredApps": string(app)},
			"$set":      bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return false, fmt.Errorf("add app: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, id string, now time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": now, "updatedAt": now}}, "record login")
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, hash string, expires, now time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"resetPasswordToken":   hash,
		"resetPasswordExpires": expires,
		"updatedAt":            now,
	}}, "set reset token")
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "isEmailVerified": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"isEmailVerified": true, "updatedAt": now}},
	)
	if err != nil {
		return false, fmt.Errorf("mark email verified: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// LinkGoogle only matches records without a googleId, so a concurrent link
// to another google account wins and this call becomes a no-op.
func (r *UserRepository) LinkGoogle(ctx context.Context, id string, identity domain.ProviderIdentity, now time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	set := bson.M{
		"googleId":  identity.ID,
		"updatedAt": now,
		"authProvider": bson.M{"$cond": bson.A{
			bson.M{"$gt": bson.A{bson.M{"$ifNull": bson.A{"$password", ""}}, ""}},
			string(domain.AuthBoth),
			string(domain.AuthGoogle),
		}},
	}
	if identity.Picture != "" {
		set["avatar"] = bson.M{"$cond": bson.A{
			bson.M{"$gt": bson.A{bson.M{"$ifNull": bson.A{"$avatar", ""}}, ""}},
			"$avatar",
			identity.Picture,
		}}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "googleId": bson.M{"$exists": false}},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
	)
	if err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("link google: %w", err)
	}
	return nil
}

func (r *UserRepository) RedeemResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.User, error) {
	if hash == "" || passwordHash == "" {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"resetPasswordToken":   hash,
		"resetPasswordExpires": bson.M{"$gt": now},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"password":  passwordHash,
			"updatedAt": now,
			"authProvider": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{bson.M{"$ifNull": bson.A{"$googleId", ""}}, ""}},
				string(domain.AuthBoth),
				string(domain.AuthLocal),
			}},
		}}},
		{{Key: "$unset", Value: bson.A{"resetPasswordToken", "resetPasswordExpires"}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("redeem reset token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.M, op string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// duplicateKeyError maps a unique index violation to the domain conflict it
// represents. A google id collision means the identity already exists, so
// it is reported like an email collision.
func duplicateKeyError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if strings.Contains(err.Error(), "username_1") {
		return domain.ErrUsernameTaken
	}
	return domain.ErrEmailTaken
}

// EnsureIndexes creates the unique and lookup indexes on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
