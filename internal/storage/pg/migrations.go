package pg

import "embed"

// Migrations 日志库表结构，由 migrate.Runner 执行
//
//go:embed migrations/*.sql
var Migrations embed.FS
