package model

import (
	"time"
)

// UserRole user role enum
type UserRole string

const (
	RoleSuperAdmin  UserRole = "super_admin"
	RoleTenantOwner UserRole = "tenant_owner"
	RoleTenantStaff UserRole = "tenant_staff"
	RoleCustomer    UserRole = "customer"
)

// User user model
type User struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username       string     `gorm:"type:varchar(100);uniqueIndex" json:"username"`
	HashedPassword string     `gorm:"type:varchar(255);not null" json:"-"`
	FullName       string     `gorm:"type:varchar(255)" json:"full_name"`
	Phone          string     `gorm:"type:varchar(50)" json:"phone,omitempty"`
	AvatarURL      string     `gorm:"type:varchar(500)" json:"avatar_url,omitempty"`
	Role           UserRole   `gorm:"type:varchar(20);default:customer;index" json:"role"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	IsVerified     bool       `gorm:"default:false" json:"is_verified"`
	TenantID       *uint      `gorm:"index" json:"tenant_id,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

// TableName set name
func (User) TableName() string {
	return "users"
}

// IsSuperAdmin check super admin role
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsTenantOwner check tenant owner role
func (u *User) IsTenantOwner() bool {
	return u.Role == RoleTenantOwner
}

// IsTenantStaff check tenant staff role
func (u *User) IsTenantStaff() bool {
	return u.Role == RoleTenantStaff
}

// BelongsToTenant check the user is attached to the given tenant
func (u *User) BelongsToTenant(tenantID uint) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

// CanManageTenant check the user may administer the given tenant
func (u *User) CanManageTenant(tenantID uint) bool {
	if u.IsSuperAdmin() {
		return true
	}
	return (u.IsTenantOwner() || u.IsTenantStaff()) && u.BelongsToTenant(tenantID)
}
