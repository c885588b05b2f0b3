package models

import (
	"time"

	"github.com/taoyao-code/mocobus/internal/axis"
)

// 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// AxisProfile 映射 axis_profiles 表
type AxisProfile struct {
	// 节点地址 2..255
	Address     int16     `gorm:"column:address;primaryKey;autoIncrement:false"`
	Name        string    `gorm:"column:name;type:text;not null;default:''"`
	MinPos      int32     `gorm:"column:min_pos;not null"`
	MaxPos      int32     `gorm:"column:max_pos;not null"`
	MaxVelocity int32     `gorm:"column:max_velocity;not null;default:0"`
	MaxAccel    int32     `gorm:"column:max_accel;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (AxisProfile) TableName() string { return "axis_profiles" }

// ToProfile 转换为轴配置
func (m AxisProfile) ToProfile() axis.Profile {
	return axis.Profile{
		Address:     byte(m.Address),
		Name:        m.Name,
		Min:         m.MinPos,
		Max:         m.MaxPos,
		MaxVelocity: m.MaxVelocity,
		MaxAccel:    m.MaxAccel,
	}
}

// FromProfile 由轴配置构造记录
func FromProfile(p axis.Profile) *AxisProfile {
	return &AxisProfile{
		Address:     int16(p.Address),
		Name:        p.Name,
		MinPos:      p.Min,
		MaxPos:      p.Max,
		MaxVelocity: p.MaxVelocity,
		MaxAccel:    p.MaxAccel,
	}
}

// ToProfiles 批量转换
func ToProfiles(rows []AxisProfile) []axis.Profile {
	out := make([]axis.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToProfile())
	}
	return out
}
