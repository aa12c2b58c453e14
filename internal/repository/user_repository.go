package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/face-register/internal/logging"
	"github.com/example/face-register/internal/retry"
)

const uniqueViolation = "23505"

var (
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email is already registered")
	// ErrNotFound is returned when no registration matches.
	ErrNotFound = errors.New("registration not found")
)

// User is a registered student with their processed portrait.
type User struct {
	ID             uint      `gorm:"primaryKey"`
	RegistrationID string    `gorm:"column:registration_id;uniqueIndex;size:64;not null"`
	FullName       string    `gorm:"column:full_name;size:120;not null"`
	Email          string    `gorm:"column:email;uniqueIndex;size:120;not null"`
	PhoneNumber    string    `gorm:"column:phone_number;size:20;not null"`
	DateOfBirth    string    `gorm:"column:date_of_birth;size:10;not null"`
	University     string    `gorm:"column:university;size:120;not null"`
	Gender         string    `gorm:"column:gender;size:10;not null"`
	Photo          string    `gorm:"column:photo;type:text;not null"`
	PhotoSHA1      string    `gorm:"column:photo_sha1;size:40;index"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// MetricsAggregation holds registration counters computed in the database.
type MetricsAggregation struct {
	TotalCount      int64
	LastDayCount    int64
	UniversityCount int64
	LatestAt        *time.Time
}

// UserRepository provides persistence APIs for registrations.
type UserRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
	now    func() time.Time
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger.Named("user_repository"),
		policy: retry.Default,
		now:    time.Now,
	}
}

// AutoMigrate ensures the schema is available.
func (r *UserRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&User{})
	})
}

// CreateUser inserts a registration. Inserts are not retried so a timed out
// write cannot be applied twice.
func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	err := translateError(r.db.WithContext(ctx).Create(user).Error)
	if err != nil && !errors.Is(err, ErrDuplicateEmail) {
		r.logger.Error("failed to create user", zap.Error(err), zap.String("registration_id", user.RegistrationID))
	}
	return logging.NewOperationError("repository.create_user", user.RegistrationID, err)
}

// FindByRegistrationID loads a registration by its public id.
func (r *UserRepository) FindByRegistrationID(ctx context.Context, registrationID string) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user", registrationID, func() error {
		return translateError(r.db.WithContext(ctx).First(&user, "registration_id = ?", registrationID).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AggregateMetrics computes registration counters.
func (r *UserRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		db := r.db.WithContext(ctx).Model(&User{})
		if err := db.Count(&agg.TotalCount).Error; err != nil {
			return err
		}
		since := r.now().Add(-24 * time.Hour)
		if err := r.db.WithContext(ctx).Model(&User{}).Where("created_at >= ?", since).Count(&agg.LastDayCount).Error; err != nil {
			return err
		}
		if err := r.db.WithContext(ctx).Model(&User{}).Distinct("university").Count(&agg.UniversityCount).Error; err != nil {
			return err
		}
		var latest sql.NullTime
		if err := r.db.WithContext(ctx).Model(&User{}).Select("MAX(created_at)").Row().Scan(&latest); err != nil {
			return err
		}
		if latest.Valid {
			agg.LatestAt = &latest.Time
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *UserRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return r.policy.Do(ctx, r.logger, operation, requestID, fn)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
