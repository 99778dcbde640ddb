package repository

import (
	"time"

	"github.com/Er1one/telegram-bot-template/internal/domain"
)

// UserModel is the persistence model for the users table.
type UserModel struct {
	ID           int64   `gorm:"primaryKey;autoIncrement:false"`
	LanguageCode string  `gorm:"type:varchar(10);not null"`
	Username     *string `gorm:"type:varchar(32)"`
	FullName     string  `gorm:"type:varchar(128);not null"`
	IsBanned     bool    `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// BroadcastRunModel is the persistence model for broadcast_runs.
type BroadcastRunModel struct {
	ID            string           `gorm:"type:uuid;primaryKey"`
	RequestedBy   int64            `gorm:"not null"`
	Text          string           `gorm:"type:text;not null"`
	PhotoURLs     []string         `gorm:"type:jsonb;serializer:json"`
	DocumentURL   string           `gorm:"type:text"`
	RecipientIDs  []int64          `gorm:"type:jsonb;serializer:json"`
	IncludeBanned bool             `gorm:"not null;default:false"`
	Status        domain.RunStatus `gorm:"type:varchar(20);not null"`
	Expected      int64            `gorm:"not null;default:0"`
	Total         int64            `gorm:"not null;default:0"`
	Success       int64            `gorm:"not null;default:0"`
	Failed        int64            `gorm:"not null;default:0"`
	Blocked       int64            `gorm:"not null;default:0"`
	Error         *string          `gorm:"type:text"`
	StartedAt     *time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BroadcastRunModel) TableName() string {
	return "broadcast_runs"
}

func userModelFromDomain(u *domain.User) *UserModel {
	if u == nil {
		return nil
	}

	return &UserModel{
		ID:           u.ID,
		LanguageCode: u.LanguageCode,
		Username:     u.Username,
		FullName:     u.FullName,
		IsBanned:     u.IsBanned,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:           m.ID,
		LanguageCode: m.LanguageCode,
		Username:     m.Username,
		FullName:     m.FullName,
		IsBanned:     m.IsBanned,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func runModelFromDomain(r *domain.BroadcastRun) *BroadcastRunModel {
	if r == nil {
		return nil
	}

	return &BroadcastRunModel{
		ID:            r.ID,
		RequestedBy:   r.RequestedBy,
		Text:          r.Text,
		PhotoURLs:     r.PhotoURLs,
		DocumentURL:   r.DocumentURL,
		RecipientIDs:  r.RecipientIDs,
		IncludeBanned: r.IncludeBanned,
		Status:        r.Status,
		Expected:      r.Expected,
		Total:         r.Total,
		Success:       r.Success,
		Failed:        r.Failed,
		Blocked:       r.Blocked,
		Error:         r.Error,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func runModelToDomain(m *BroadcastRunModel) *domain.BroadcastRun {
	if m == nil {
		return nil
	}

	return &domain.BroadcastRun{
		ID:            m.ID,
		RequestedBy:   m.RequestedBy,
		Text:          m.Text,
		PhotoURLs:     m.PhotoURLs,
		DocumentURL:   m.DocumentURL,
		RecipientIDs:  m.RecipientIDs,
		IncludeBanned: m.IncludeBanned,
		Status:        m.Status,
		Expected:      m.Expected,
		Total:         m.Total,
		Success:       m.Success,
		Failed:        m.Failed,
		Blocked:       m.Blocked,
		Error:         m.Error,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
