package axis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile 轴配置：来自配置文件、轴定义文件或数据库
type Profile struct {
	Address     byte   `mapstructure:"address" yaml:"address" json:"address"`
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Min         int32  `mapstructure:"min" yaml:"min" json:"min"`
	Max         int32  `mapstructure:"max" yaml:"max" json:"max"`
	MaxVelocity int32  `mapstructure:"maxVelocity" yaml:"maxVelocity" json:"max_velocity"`
	MaxAccel    int32  `mapstructure:"maxAccel" yaml:"maxAccel" json:"max_accel"`
}

// Limits 转换为限位
func (p Profile) Limits() Limits {
	return Limits{Min: p.Min, Max: p.Max, MaxVelocity: p.MaxVelocity, MaxAccel: p.MaxAccel}
}

// Validate 地址必须是节点地址，且 Min <= Max
func (p Profile) Validate() error {
	if p.Address < 2 {
		return fmt.Errorf("axis profile %q: address %d is reserved", p.Name, p.Address)
	}
	if p.Min > p.Max {
		return fmt.Errorf("axis profile %q: min %d > max %d", p.Name, p.Min, p.Max)
	}
	return nil
}

// Merge 按地址合并，后面的层覆盖前面的
func Merge(layers ...[]Profile) []Profile {
	idx := make(map[byte]int)
	var out []Profile
	for _, layer := range layers {
		for _, p := range layer {
			if i, ok := idx[p.Address]; ok {
				out[i] = p
				continue
			}
			idx[p.Address] = len(out)
			out = append(out, p)
		}
	}
	return out
}

type profileFile struct {
	Axes []Profile `yaml:"axes"`
}

// LoadFile 读取轴定义文件（YAML）
func LoadFile(path string) ([]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProfiles(raw)
}

// ParseProfiles 解析并校验轴定义
func ParseProfiles(raw []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse axis profiles: %w", err)
	}
	for _, p := range f.Axes {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Axes, nil
}
