package model

import (
	"time"
)

// TenantStatus tenant status enum
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// Tenant an isolated shop within the platform
type Tenant struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string       `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Domain      string       `gorm:"type:varchar(255);uniqueIndex" json:"domain,omitempty"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	LogoURL     string       `gorm:"type:varchar(500)" json:"logo_url,omitempty"`
	OwnerID     uint         `gorm:"index" json:"owner_id"`
	Status      TenantStatus `gorm:"type:varchar(20);default:trial;index" json:"status"`
	Settings    JSONMap      `gorm:"type:json" json:"settings,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// TableName set name
func (Tenant) TableName() string {
	return "tenants"
}

// IsActive check the tenant may serve traffic
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive || t.Status == TenantStatusTrial
}

// TelegramChatID owner notification channel, stored in tenant settings
func (t *Tenant) TelegramChatID() (int64, bool) {
	if t.Settings == nil {
		return 0, false
	}
	switch v := t.Settings["telegram_chat_id"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}
