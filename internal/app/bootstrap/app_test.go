package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"带密码", "postgres://moco:secret@db:5432/moco?sslmode=disable", "postgres://moco:****@db:5432/moco?sslmode=disable"},
		{"无密码", "postgres://db:5432/moco", "postgres://db:5432/moco"},
		{"空", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskDSN(tt.dsn))
		})
	}
}
