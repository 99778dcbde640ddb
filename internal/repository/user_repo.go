package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Er1one/telegram-bot-template/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, username *string, fullName string) error
	SetLanguage(ctx context.Context, id int64, languageCode string) error
	SetBanned(ctx context.Context, id int64, banned bool) (bool, error)
	Count(ctx context.Context, includeBanned bool) (int64, error)
	ListAfter(ctx context.Context, after int64, includeBanned bool, limit int) ([]domain.User, error)
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) Create(ctx context.Context, u *domain.User) error {
	model := userModelFromDomain(u)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if u != nil {
		*u = *userModelToDomain(model)
	}
	return nil
}

func (r *GormUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

// UpdateProfile refreshes the Telegram-owned fields and clears the ban flag of
// a returning user.
func (r *GormUserRepo) UpdateProfile(ctx context.Context, id int64, username *string, fullName string) error {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"username":  username,
			"full_name": fullName,
			"is_banned": false,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormUserRepo) SetLanguage(ctx context.Context, id int64, languageCode string) error {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", id).
		Update("language_code", languageCode)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetBanned only touches a row whose flag differs, so repeating the call is a
// no-op. It reports whether a row changed; unknown ids are not an error.
func (r *GormUserRepo) SetBanned(ctx context.Context, id int64, banned bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ? AND is_banned <> ?", id, banned).
		Update("is_banned", banned)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormUserRepo) Count(ctx context.Context, includeBanned bool) (int64, error) {
	var total int64
	err := r.recipients(ctx, includeBanned).Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ListAfter returns up to limit users with id > after in ascending id order.
func (r *GormUserRepo) ListAfter(ctx context.Context, after int64, includeBanned bool, limit int) ([]domain.User, error) {
	var models []UserModel
	err := r.recipients(ctx, includeBanned).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for i := range models {
		users = append(users, *userModelToDomain(&models[i]))
	}
	return users, nil
}

func (r *GormUserRepo) recipients(ctx context.Context, includeBanned bool) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&UserModel{})
	if !includeBanned {
		query = query.Where("is_banned = ?", false)
	}
	return query
}
