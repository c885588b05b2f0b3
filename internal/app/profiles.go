package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/api"
	"github.com/taoyao-code/mocobus/internal/axis"
	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	"github.com/taoyao-code/mocobus/internal/master"
	"github.com/taoyao-code/mocobus/internal/storage"
	"github.com/taoyao-code/mocobus/internal/storage/models"
)

// LoadProfiles 合并轴配置：配置文件 < 轴定义文件 < 数据库
func LoadProfiles(ctx context.Context, cfg *cfgpkg.Config, repo storage.ProfileRepo, log *zap.Logger) ([]axis.Profile, error) {
	layers := [][]axis.Profile{cfg.Axes}

	if cfg.AxesFile != "" {
		fromFile, err := axis.LoadFile(cfg.AxesFile)
		if err != nil {
			return nil, fmt.Errorf("load axes file %s: %w", cfg.AxesFile, err)
		}
		layers = append(layers, fromFile)
		log.Info("axis profiles loaded from file", zap.String("path", cfg.AxesFile), zap.Int("count", len(fromFile)))
	}

	if repo != nil {
		rows, err := repo.ListProfiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("list axis profiles: %w", err)
		}
		fromDB := models.ToProfiles(rows)
		for _, p := range fromDB {
			if err := p.Validate(); err != nil {
				return nil, err
			}
		}
		layers = append(layers, fromDB)
		log.Info("axis profiles loaded from database", zap.Int("count", len(fromDB)))
	}

	merged := axis.Merge(layers...)
	log.Info("axis profiles ready", zap.Int("count", len(merged)))
	return merged, nil
}

// ProfileSync 改地址成功后同步迁移存储中的轴配置
type ProfileSync struct {
	*master.Master
	repo storage.ProfileRepo
	log  *zap.Logger
}

var _ api.Controller = (*ProfileSync)(nil)

// NewProfileSync repo 为 nil 时只透传
func NewProfileSync(m *master.Master, repo storage.ProfileRepo, log *zap.Logger) *ProfileSync {
	return &ProfileSync{Master: m, repo: repo, log: log}
}

// ChangeAddress 总线侧成功即返回成功；存储迁移失败只记日志
func (p *ProfileSync) ChangeAddress(ctx context.Context, from, to byte) error {
	if err := p.Master.ChangeAddress(ctx, from, to); err != nil {
		return err
	}
	if p.repo == nil {
		return nil
	}
	if err := p.repo.MoveProfile(ctx, int16(from), int16(to)); err != nil {
		p.log.Warn("move axis profile failed",
			zap.Uint8("from", from), zap.Uint8("to", to), zap.Error(err))
	}
	return nil
}
