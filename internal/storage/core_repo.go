package storage

import (
	"context"

	"github.com/taoyao-code/mocobus/internal/storage/models"
)

// ProfileRepo 轴配置存储抽象，上层不直接写 SQL
type ProfileRepo interface {
	// WithTx 在单个事务中执行 fn，嵌套调用复用当前事务
	WithTx(ctx context.Context, fn func(repo ProfileRepo) error) error

	// ListProfiles 按地址升序返回全部轴配置
	ListProfiles(ctx context.Context) ([]models.AxisProfile, error)
	// GetProfile 不存在时返回 gorm.ErrRecordNotFound
	GetProfile(ctx context.Context, address int16) (*models.AxisProfile, error)
	// UpsertProfile 按地址插入或覆盖
	UpsertProfile(ctx context.Context, p *models.AxisProfile) error
	// DeleteProfile 删除不存在的地址不报错
	DeleteProfile(ctx context.Context, address int16) error
	// MoveProfile 节点改地址后迁移配置
	MoveProfile(ctx context.Context, from, to int16) error
}
