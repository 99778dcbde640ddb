package repository

import (
	"context"
	"fmt"

	"github.com/Er1one/telegram-bot-template/internal/broadcast"
)

var _ broadcast.RecipientSource = (*RecipientSource)(nil)

// RecipientSource exposes the user directory to the broadcast dispatcher.
type RecipientSource struct {
	users UserRepository
}

func NewRecipientSource(users UserRepository) *RecipientSource {
	return &RecipientSource{users: users}
}

func (s *RecipientSource) Count(ctx context.Context, filter broadcast.Filter) (int64, error) {
	return s.users.Count(ctx, filter.IncludeBanned)
}

func (s *RecipientSource) Page(ctx context.Context, after int64, filter broadcast.Filter, limit int) ([]broadcast.Recipient, error) {
	users, err := s.users.ListAfter(ctx, after, filter.IncludeBanned, limit)
	if err != nil {
		return nil, err
	}

	page := make([]broadcast.Recipient, 0, len(users))
	for _, u := range users {
		page = append(page, broadcast.Recipient{ID: u.ID, Banned: u.IsBanned})
	}
	return page, nil
}

func (s *RecipientSource) SetBanned(ctx context.Context, id int64, banned bool) error {
	if _, err := s.users.SetBanned(ctx, id, banned); err != nil {
		return fmt.Errorf("failed to set ban flag for %d: %w", id, err)
	}
	return nil
}
