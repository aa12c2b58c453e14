package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-register/internal/logging"
	"github.com/example/face-register/internal/repository"
	"github.com/example/face-register/internal/retry"
)

// UserRepository defines the persistence operations needed by the use case.
type UserRepository interface {
	CreateUser(ctx context.Context, user *repository.User) error
	FindByRegistrationID(ctx context.Context, registrationID string) (*repository.User, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// PortraitProcessor normalizes a submitted photo envelope.
type PortraitProcessor interface {
	Process(ctx context.Context, blob string) (string, error)
}

// RegistrationInput carries the submitted profile fields and photo.
type RegistrationInput struct {
	FullName    string
	Email       string
	PhoneNumber string
	DateOfBirth string
	University  string
	Gender      string
	Photo       string
}

// Option customises a RegistrationUseCase.
type Option func(*RegistrationUseCase)

// WithPortraitTTL sets how long processed portraits stay cached.
func WithPortraitTTL(ttl time.Duration) Option {
	return func(uc *RegistrationUseCase) {
		uc.portraitTTL = ttl
	}
}

// RegistrationUseCase encapsulates business logic for the registration flow.
type RegistrationUseCase struct {
	repo            UserRepository
	cache           Cache
	processor       PortraitProcessor
	logger          *zap.Logger
	retry           retry.Policy
	portraitTTL     time.Duration
	registrationTTL time.Duration
	now             func() time.Time
}

type cachedRegistration struct {
	RegistrationID string    `json:"registration_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number"`
	DateOfBirth    string    `json:"date_of_birth"`
	University     string    `json:"university"`
	Gender         string    `json:"gender"`
	Photo          string    `json:"photo"`
	PhotoSHA1      string    `json:"photo_sha1"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewRegistrationUseCase constructs a new use case instance.
func NewRegistrationUseCase(repo UserRepository, cache Cache, processor PortraitProcessor, logger *zap.Logger, opts ...Option) *RegistrationUseCase {
	uc := &RegistrationUseCase{
		repo:            repo,
		cache:           cache,
		processor:       processor,
		logger:          logger.Named("registration_usecase"),
		retry:           retry.Default,
		portraitTTL:     10 * time.Minute,
		registrationTTL: 5 * time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Register normalizes the submitted photo and persists the registration.
func (uc *RegistrationUseCase) Register(ctx context.Context, in RegistrationInput) (*repository.User, error) {
	registrationID := uuid.NewString()
	ctx = logging.ContextWithRequestID(ctx, registrationID)
	opLogger := logging.WithOperation(uc.logger, "usecase.register", registrationID)

	photo, photoHash, err := uc.normalizePhoto(ctx, registrationID, in.Photo)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		RegistrationID: registrationID,
		FullName:       in.FullName,
		Email:          in.Email,
		PhoneNumber:    in.PhoneNumber,
		DateOfBirth:    in.DateOfBirth,
		University:     in.University,
		Gender:         in.Gender,
		Photo:          photo,
		PhotoSHA1:      photoHash,
		CreatedAt:      uc.now().UTC(),
	}
	if err := uc.repo.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			opLogger.Error("failed to persist registration", logging.ErrorFields(err)...)
		}
		return nil, err
	}

	uc.cacheRegistration(ctx, user)
	opLogger.Info("registration stored", zap.String("university", user.University))
	return user, nil
}

// GetRegistration retrieves a cached registration or loads it from persistence.
func (uc *RegistrationUseCase) GetRegistration(ctx context.Context, registrationID string) (*repository.User, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_registration", registrationID)

	cached, err := uc.cacheGet(ctx, registrationID, "cache.get.registration", registrationKey(registrationID))
	if err == nil {
		var payload cachedRegistration
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached registration", zap.Error(err))
		} else {
			return payload.user(), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	user, err := uc.repo.FindByRegistrationID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	uc.cacheRegistration(ctx, user)
	return user, nil
}

func (uc *RegistrationUseCase) normalizePhoto(ctx context.Context, registrationID, blob string) (string, string, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.normalize_photo", registrationID)
	if blob == "" {
		_, err := uc.processor.Process(ctx, blob)
		return "", "", logging.NewOperationError("usecase.normalize_photo", registrationID, err)
	}

	sum := sha1.Sum([]byte(blob))
	photoHash := hex.EncodeToString(sum[:])
	key := portraitKey(photoHash)

	cached, err := uc.cacheGet(ctx, registrationID, "cache.get.portrait", key)
	if err == nil && cached != "" {
		opLogger.Debug("using cached portrait", zap.String("photo_sha1", photoHash))
		return cached, photoHash, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read portrait cache", zap.Error(err))
	}

	started := uc.now()
	processed, err := uc.processor.Process(ctx, blob)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.normalize_photo", registrationID, err)
		opLogger.Info("photo rejected", logging.ErrorFields(err)...)
		return "", "", wrapped
	}
	opLogger.Debug("photo normalized", zap.Duration("elapsed", uc.now().Sub(started)))

	if err := uc.withRedisRetry(ctx, registrationID, "cache.set.portrait", func() error {
		return uc.cache.Set(ctx, key, processed, uc.portraitTTL)
	}); err != nil {
		opLogger.Warn("failed to cache portrait", zap.Error(err))
	}
	return processed, photoHash, nil
}

func (uc *RegistrationUseCase) cacheRegistration(ctx context.Context, user *repository.User) {
	serialized, err := json.Marshal(newCachedRegistration(user))
	if err != nil {
		uc.logger.Warn("failed to serialize registration", zap.Error(err))
		return
	}
	if err := uc.withRedisRetry(ctx, user.RegistrationID, "cache.set.registration", func() error {
		return uc.cache.Set(ctx, registrationKey(user.RegistrationID), string(serialized), uc.registrationTTL)
	}); err != nil {
		logging.WithOperation(uc.logger, "usecase.cache_registration", user.RegistrationID).Warn("failed to cache registration", zap.Error(err))
	}
}

func (uc *RegistrationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	return uc.retry.Do(ctx, uc.logger, operation, requestID, fn)
}

func (uc *RegistrationUseCase) cacheGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var (
		result string
		miss   bool
	)
	// Misses come back as redis.Nil without counting as a failed attempt.
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	if miss {
		return "", redis.Nil
	}
	return result, nil
}

func newCachedRegistration(u *repository.User) cachedRegistration {
	return cachedRegistration{
		RegistrationID: u.RegistrationID,
		FullName:       u.FullName,
		Email:          u.Email,
		PhoneNumber:    u.PhoneNumber,
		DateOfBirth:    u.DateOfBirth,
		University:     u.University,
		Gender:         u.Gender,
		Photo:          u.Photo,
		PhotoSHA1:      u.PhotoSHA1,
		CreatedAt:      u.CreatedAt,
	}
}

func (c cachedRegistration) user() *repository.User {
	return &repository.User{
		RegistrationID: c.RegistrationID,
		FullName:       c.FullName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		DateOfBirth:    c.DateOfBirth,
		University:     c.University,
		Gender:         c.Gender,
		Photo:          c.Photo,
		PhotoSHA1:      c.PhotoSHA1,
		CreatedAt:      c.CreatedAt,
	}
}
