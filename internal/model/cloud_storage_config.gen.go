package model

import "time"

const TableNameCloudStorageConfig = "cloud_storage_config"

// CloudStorageConfig mapped from table <cloud_storage_config>
type CloudStorageConfig struct {
	ID              int64     `gorm:"column:id;primaryKey" json:"id" form:"id"`
	UserID          int64     `gorm:"column:user_id;not null;index:idx_cloud_storage_user,priority:1" json:"userId" form:"userId"`
	Name            string    `gorm:"column:name;not null" json:"name" form:"name"`
	StorageType     string    `gorm:"column:storage_type;not null;index:idx_cloud_storage_user,priority:2" json:"storageType" form:"storageType"`
	Region          string    `gorm:"column:region" json:"region" form:"region"`
	Bucket          string    `gorm:"column:bucket" json:"bucket" form:"bucket"`
	Endpoint        string    `gorm:"column:endpoint" json:"endpoint" form:"endpoint"`
	PathPrefix      string    `gorm:"column:path_prefix" json:"pathPrefix" form:"pathPrefix"`
	AccessKeyID     string    `gorm:"column:access_key_id" json:"accessKeyId" form:"accessKeyId"`
	SecretAccessKey string    `gorm:"column:secret_access_key" json:"-" form:"secretAccessKey"`
	UsePathStyle    bool      `gorm:"column:use_path_style;default:false" json:"usePathStyle" form:"usePathStyle"`
	RefreshToken    string    `gorm:"column:refresh_token;type:text" json:"-" form:"refreshToken"`
	FolderID        string    `gorm:"column:folder_id" json:"folderId" form:"folderId"`
	Host            string    `gorm:"column:host" json:"host" form:"host"`
	Port            int       `gorm:"column:port" json:"port" form:"port"`
	Username        string    `gorm:"column:username" json:"username" form:"username"`
	Password        string    `gorm:"column:password" json:"-" form:"password"`
	IsActive        bool      `gorm:"column:is_active" json:"isActive" form:"isActive"`
	IsDefault       bool      `gorm:"column:is_default;default:false" json:"isDefault" form:"isDefault"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"createdAt" form:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updatedAt" form:"updatedAt"`
}

// TableName CloudStorageConfig's table name
func (*CloudStorageConfig) TableName() string {
	return TableNameCloudStorageConfig
}
