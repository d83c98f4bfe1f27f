package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chunkvault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrLabelNotFound    = errors.New("label not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrRunNotFound      = errors.New("run not found in catalog")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 运行记录 (Runs)
// -----------------------------------------------------------------------------

// Run 是 RecordRun 的输入
type Run struct {
	InputDigest     types.Address
	InputSize       int64
	Kind            string
	ChunkCount      int
	DataMapSize     int
	ManifestAddress types.Address // 零值表示未发布
	Addresses       []types.Address
}

// RecordRun 追加一条运行记录
func (r *Repository) RecordRun(ctx context.Context, run Run) (*RunRecord, error) {
	// 1. 地址列表 -> JSON
	hexAddrs := make([]string, len(run.Addresses))
	for i, a := range run.Addresses {
		hexAddrs[i] = a.String()
	}
	addrsJSON, err := json.Marshal(hexAddrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal addresses: %w", err)
	}

	// 2. 构造 Model
	rec := RunRecord{
		InputDigest: run.InputDigest.String(),
		InputSize:   run.InputSize,
		Kind:        run.Kind,
		ChunkCount:  run.ChunkCount,
		DataMapSize: run.DataMapSize,
		Addresses:   datatypes.JSON(addrsJSON),
	}
	if !run.ManifestAddress.IsZero() {
		rec.ManifestAddress = run.ManifestAddress.String()
	}

	// 3. 写入
	if err := r.db.GetConn().WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return &rec, nil
}

// ListRuns 按时间倒序返回最近的 limit 条记录
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := r.db.GetConn().WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// FindByInputDigest 返回该输入最近一次的运行记录
func (r *Repository) FindByInputDigest(ctx context.Context, digest types.Address) (*RunRecord, error) {
	var run RunRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("input_digest = ?", digest.String()).
		Order("id DESC").
		First(&run).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ChunkAddresses 解析记录中的地址列表
func (rec *RunRecord) ChunkAddresses() ([]types.Address, error) {
	if len(rec.Addresses) == 0 {
		return nil, nil
	}
	var hexAddrs []string
	if err := json.Unmarshal(rec.Addresses, &hexAddrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal addresses: %w", err)
	}
	out := make([]types.Address, len(hexAddrs))
	for i, h := range hexAddrs {
		a, err := types.ParseAddress(h)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// 2. 标签 (Labels)
// -----------------------------------------------------------------------------

// GetLabel 获取标签当前指向的清单
func (r *Repository) GetLabel(ctx context.Context, name string) (*Label, error) {
	var label Label
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&label).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLabelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// UpdateLabel 原子更新标签 (CAS)
// oldVersion 为 0 表示创建；否则必须等于数据库中的当前版本
func (r *Repository) UpdateLabel(ctx context.Context, name string, manifest types.Address, oldVersion int64) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 场景 A: 第一次创建
		if oldVersion == 0 {
			label := Label{
				Name:            name,
				ManifestAddress: manifest.String(),
				Version:         1,
			}
			if err := tx.Create(&label).Error; err != nil {
				// 兼容 PG 与 SQLite 的唯一约束错误
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create label: %w", err)
			}
			return nil
		}

		// 场景 B: UPDATE labels SET ... WHERE name = ? AND version = ?
		result := tx.Model(&Label{}).
			Where("name = ? AND version = ?", name, oldVersion).
			Updates(map[string]any{
				"manifest_address": manifest.String(),
				"version":          gorm.Expr("version + 1"),
				"updated_at":       time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
}

// SetLabel 读取当前版本后更新，供 CLI 使用
func (r *Repository) SetLabel(ctx context.Context, name string, manifest types.Address) error {
	var version int64
	label, err := r.GetLabel(ctx, name)
	switch {
	case errors.Is(err, ErrLabelNotFound):
	case err != nil:
		return err
	default:
		version = label.Version
	}
	return r.UpdateLabel(ctx, name, manifest, version)
}
