package meta

import (
	"time"

	"gorm.io/datatypes"
)

// RunRecord 记录一次自加密调用的结果
// 用于 cv history 以及按输入摘要查找已发布的清单
type RunRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	// InputDigest 是原始输入的 SHA3-256 (Hex)
	InputDigest string `gorm:"index;type:char(64);not null"`
	InputSize   int64

	Kind        string `gorm:"type:varchar(16);not null"`
	ChunkCount  int
	DataMapSize int

	// ManifestAddress 为空表示结果没有被发布
	ManifestAddress string `gorm:"index;type:varchar(64)"`

	// Addresses: 按序号排列的 Chunk 地址 ["hex1", "hex2", ...]
	Addresses datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

func (RunRecord) TableName() string {
	return "runs"
}

// Label 是指向清单的可变名字 (例如 "backup/latest")
type Label struct {
	Name string `gorm:"primaryKey;type:varchar(255)"`

	ManifestAddress string `gorm:"type:char(64);not null"`

	// Version 用于乐观锁并发控制 (CAS)
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}
