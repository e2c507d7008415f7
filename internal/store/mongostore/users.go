package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/storefront"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type totpDoc struct {
	Enabled       bool   `bson:"enabled"`
	Secret        string `bson:"secret,omitempty"`
	PendingSecret string `bson:"pendingSecret,omitempty"`
	LastCounter   int64  `bson:"lastCounter"`
}

type loginDoc struct {
	IP        string    `bson:"ip"`
	UserAgent string    `bson:"userAgent"`
	Date      time.Time `bson:"date"`
}

type userDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password"`
	Role         string     `bson:"role"`
	Verified     bool       `bson:"isVerified"`
	Active       bool       `bson:"isActive"`
	TwoFactor    totpDoc    `bson:"twoFactor"`
	LoginHistory []loginDoc `bson:"loginHistory,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func (d *userDoc) toUser() *storefront.User {
	return &storefront.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Verified:     d.Verified,
		Active:       d.Active,
		TOTP: storefront.TOTPState{
			Enabled:       d.TwoFactor.Enabled,
			Secret:        d.TwoFactor.Secret,
			PendingSecret: d.TwoFactor.PendingSecret,
			LastCounter:   d.TwoFactor.LastCounter,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

var _ storefront.UserProvider = (*Store)(nil)

var withoutHistory = options.FindOne().SetProjection(bson.M{"loginHistory": 0})

func (s *Store) findUser(ctx context.Context, filter bson.M) (*storefront.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter, withoutHistory).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storefront.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storefront.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*storefront.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID})
}

func (s *Store) CreateUser(ctx context.Context, in storefront.CreateUserInput) (*storefront.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDoc{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Verified:     in.Verified,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storefront.ErrUserExists
		}
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *Store) updateUser(ctx context.Context, userID string, update bson.M) error {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updatedAt"] = time.Now().UTC()

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storefront.ErrUserNotFound
	}
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, userID string) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"isVerified": true}})
}

func (s *Store) SetRole(ctx context.Context, userID, role string) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"role": role}})
}

func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"isActive": active}})
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"password": hash}})
}

func (s *Store) SetPendingTOTPSecret(ctx context.Context, userID, secret string) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"twoFactor.pendingSecret": secret}})
}

func (s *Store) EnableTOTP(ctx context.Context, userID, secret string, counter int64) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{
		"twoFactor": totpDoc{Enabled: true, Secret: secret, LastCounter: counter},
	}})
}

func (s *Store) DisableTOTP(ctx context.Context, userID string) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"twoFactor": totpDoc{}}})
}

// UpdateTOTPCounter only matches while the stored counter is below
// counter, so a replayed code loses even when requests race.
func (s *Store) UpdateTOTPCounter(ctx context.Context, userID string, counter int64) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "$or": bson.A{
			bson.M{"twoFactor.lastCounter": bson.M{"$lt": counter}},
			bson.M{"twoFactor.lastCounter": bson.M{"$exists": false}},
		}},
		bson.M{"$set": bson.M{"twoFactor.lastCounter": counter, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if n == 0 {
		return storefront.ErrUserNotFound
	}
	return storefront.ErrTOTPInvalid
}

func (s *Store) AppendLoginHistory(ctx context.Context, userID string, rec storefront.LoginRecord, limit int) error {
	return s.updateUser(ctx, userID, bson.M{"$push": bson.M{
		"loginHistory": bson.M{
			"$each":  bson.A{loginDoc(rec)},
			"$slice": -limit,
		},
	}})
}

func (s *Store) LoginHistory(ctx context.Context, userID string) ([]storefront.LoginRecord, error) {
	var doc struct {
		LoginHistory []loginDoc `bson:"loginHistory"`
	}
	err := s.users.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"loginHistory": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storefront.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]storefront.LoginRecord, len(doc.LoginHistory))
	for i, h := range doc.LoginHistory {
		out[i] = storefront.LoginRecord(h)
	}
	return out, nil
}
