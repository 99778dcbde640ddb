package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/repository"
)

// LocaleCache is the fast path for per-user locale lookups. Get returns ""
// on a miss.
type LocaleCache interface {
	Get(ctx context.Context, userID int64) (string, error)
	Set(ctx context.Context, userID int64, locale string) error
}

// Locales is the set of locales the bot can speak.
type Locales interface {
	Supported(locale string) bool
	Default() string
}

type UserService struct {
	users   repository.UserRepository
	cache   LocaleCache
	locales Locales
	logger  *zap.Logger
}

func NewUserService(
	users repository.UserRepository,
	cache LocaleCache,
	locales Locales,
	logger *zap.Logger,
) (*UserService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if locales == nil {
		return nil, fmt.Errorf("locales are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UserService{
		users:   users,
		cache:   cache,
		locales: locales,
		logger:  logger,
	}, nil
}

// Register stores a first-time user or refreshes a known one. A returning
// user who had blocked the bot is unbanned; their chosen language is kept.
// Service accounts and bots are ignored and yield (nil, nil).
func (s *UserService) Register(ctx context.Context, profile domain.Profile) (*domain.User, error) {
	if !profile.Registrable() {
		return nil, nil
	}

	existing, err := s.users.GetByID(ctx, profile.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.create(ctx, profile)
	case err != nil:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	username := optionalUsername(profile.Username)
	fullName := profile.FullName()
	if existing.FullName == fullName && sameUsername(existing.Username, username) && !existing.IsBanned {
		return existing, nil
	}

	if err := s.users.UpdateProfile(ctx, profile.ID, username, fullName); err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	if existing.IsBanned {
		s.logger.Info("user returned", zap.Int64("userId", profile.ID))
	}

	existing.Username = username
	existing.FullName = fullName
	existing.IsBanned = false
	return existing, nil
}

func (s *UserService) create(ctx context.Context, profile domain.Profile) (*domain.User, error) {
	language := s.locales.Default()
	if s.locales.Supported(profile.LanguageCode) {
		language = profile.LanguageCode
	}

	user := &domain.User{
		ID:           profile.ID,
		LanguageCode: language,
		Username:     optionalUsername(profile.Username),
		FullName:     profile.FullName(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Registered concurrently by another update.
			return s.users.GetByID(ctx, profile.ID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.Int64("userId", user.ID),
		zap.String("language", user.LanguageCode),
	)
	return user, nil
}

// SetBanned records that the user blocked or unblocked the bot. It reports
// whether the stored flag changed.
func (s *UserService) SetBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	changed, err := s.users.SetBanned(ctx, userID, banned)
	if err != nil {
		return false, fmt.Errorf("failed to set ban flag: %w", err)
	}
	if changed {
		s.logger.Info("user ban flag changed", zap.Int64("userId", userID), zap.Bool("banned", banned))
	}
	return changed, nil
}

// Locale resolves the user's language from the cache, then the database,
// then the default. Lookup failures degrade to the default.
func (s *UserService) Locale(ctx context.Context, userID int64) string {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("locale cache read failed", zap.Int64("userId", userID), zap.Error(err))
		}
		if s.locales.Supported(cached) {
			return cached
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("locale lookup failed", zap.Int64("userId", userID), zap.Error(err))
		}
		return s.locales.Default()
	}
	if !s.locales.Supported(user.LanguageCode) {
		return s.locales.Default()
	}

	s.cacheLocale(ctx, userID, user.LanguageCode)
	return user.LanguageCode
}

func (s *UserService) SetLocale(ctx context.Context, userID int64, locale string) error {
	if !s.locales.Supported(locale) {
		return fmt.Errorf("%w: unsupported locale %q", domain.ErrValidation, locale)
	}
	if err := s.users.SetLanguage(ctx, userID, locale); err != nil {
		return fmt.Errorf("failed to store locale: %w", err)
	}
	s.cacheLocale(ctx, userID, locale)
	return nil
}

func (s *UserService) cacheLocale(ctx context.Context, userID int64, locale string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, locale); err != nil {
		s.logger.Warn("locale cache write failed", zap.Int64("userId", userID), zap.Error(err))
	}
}

func optionalUsername(username string) *string {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	return &username
}

func sameUsername(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
