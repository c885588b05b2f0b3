package gormrepo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/taoyao-code/mocobus/internal/storage"
	"github.com/taoyao-code/mocobus/internal/storage/models"
)

// Open 连接 PostgreSQL 并迁移 axis_profiles 表；SQL 日志走 zap
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{}
	if logger != nil {
		cfg.Logger = gormlogger.New(zap.NewStdLog(logger.With(zap.String("component", "gorm"))), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.AxisProfile{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Repository 基于 GORM 的 ProfileRepo 实现。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// New 返回一个使用给定 *gorm.DB 的 ProfileRepo 实例。
func New(db *gorm.DB) storage.ProfileRepo {
	return &Repository{db: db}
}

// WithTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) WithTx(ctx context.Context, fn func(storage.ProfileRepo) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// ListProfiles 按地址升序。
func (r *Repository) ListProfiles(ctx context.Context) ([]models.AxisProfile, error) {
	var rows []models.AxisProfile
	if err := r.db.WithContext(ctx).Order("address ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetProfile 按地址查询。
func (r *Repository) GetProfile(ctx context.Context, address int16) (*models.AxisProfile, error) {
	var row models.AxisProfile
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertProfile 冲突时覆盖限位与名称。
func (r *Repository) UpsertProfile(ctx context.Context, p *models.AxisProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":         gorm.Expr("excluded.name"),
				"min_pos":      gorm.Expr("excluded.min_pos"),
				"max_pos":      gorm.Expr("excluded.max_pos"),
				"max_velocity": gorm.Expr("excluded.max_velocity"),
				"max_accel":    gorm.Expr("excluded.max_accel"),
				"updated_at":   gorm.Expr("NOW()"),
			}),
		}).
		Create(p).Error
}

// DeleteProfile 删除指定地址。
func (r *Repository) DeleteProfile(ctx context.Context, address int16) error {
	return r.db.WithContext(ctx).Where("address = ?", address).Delete(&models.AxisProfile{}).Error
}

// MoveProfile 在事务内把 from 的配置迁到 to；from 无配置时不做任何事。
func (r *Repository) MoveProfile(ctx context.Context, from, to int16) error {
	return r.WithTx(ctx, func(repo storage.ProfileRepo) error {
		cur, err := repo.GetProfile(ctx, from)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := repo.DeleteProfile(ctx, from); err != nil {
			return err
		}
		moved := *cur
		moved.Address = to
		return repo.UpsertProfile(ctx, &moved)
	})
}
