package model

import "time"

const TableNameDatabaseProfile = "database_profile"

// DatabaseProfile mapped from table <database_profile>
type DatabaseProfile struct {
	ID               int64     `gorm:"column:id;primaryKey" json:"id" form:"id"`
	UserID           int64     `gorm:"column:user_id;not null;index:idx_database_profile_user" json:"userId" form:"userId"`
	Name             string    `gorm:"column:name;not null" json:"name" form:"name"`
	Type             string    `gorm:"column:type;not null" json:"type" form:"type"`
	Host             string    `gorm:"column:host" json:"host" form:"host"`
	Port             int       `gorm:"column:port" json:"port" form:"port"`
	ConnectionString string    `gorm:"column:connection_string" json:"connectionString" form:"connectionString"`
	Database         string    `gorm:"column:database_name" json:"database" form:"database"`
	Username         string    `gorm:"column:username" json:"username" form:"username"`
	Password         string    `gorm:"column:password" json:"-" form:"password"`
	SSL              bool      `gorm:"column:ssl;default:false" json:"ssl" form:"ssl"`
	IsActive         bool      `gorm:"column:is_active" json:"isActive" form:"isActive"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"createdAt" form:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updated_at" json:"updatedAt" form:"updatedAt"`
}

// TableName DatabaseProfile's table name
func (*DatabaseProfile) TableName() string {
	return TableNameDatabaseProfile
}
