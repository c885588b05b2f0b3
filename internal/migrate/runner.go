package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// 多个控制器实例共用一个库时，迁移串行执行
const advisoryLockKey int64 = 0x6d6f636f // "moco"

// ErrNoFS 未提供迁移文件
var ErrNoFS = errors.New("migrations fs is nil")

// Migration 单个向上迁移文件 <version>_<name>_up.sql
type Migration struct {
	Version int64
	Name    string
	Path    string
}

// Plan 扫描 FS 中的向上迁移并按版本排序；不符合命名的文件跳过，版本重复报错
func Plan(fsys fs.FS) ([]Migration, error) {
	var out []Migration
	byVersion := make(map[int64]string)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		m, ok := parseName(p)
		if !ok {
			return nil
		}
		if prev, dup := byVersion[m.Version]; dup {
			return fmt.Errorf("duplicate migration version %d: %s, %s", m.Version, prev, p)
		}
		byVersion[m.Version] = p
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func parseName(p string) (Migration, bool) {
	base, ok := strings.CutSuffix(path.Base(p), "_up.sql")
	if !ok {
		return Migration{}, false
	}
	num, name, _ := strings.Cut(base, "_")
	ver, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Migration{}, false
	}
	return Migration{Version: ver, Name: name, Path: p}, true
}

// Runner 迁移执行器
type Runner struct {
	FS fs.FS
}

// Up 在会话级 advisory lock 下执行未应用的迁移，每个文件一个事务；返回本次应用的版本
func (r Runner) Up(ctx context.Context, db *pgxpool.Pool) ([]int64, error) {
	if r.FS == nil {
		return nil, ErrNoFS
	}
	plan, err := Plan(r.FS)
	if err != nil {
		return nil, err
	}

	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, advisoryLockKey) //nolint:errcheck

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version    BIGINT PRIMARY KEY,
        name       TEXT NOT NULL DEFAULT '',
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, conn.Conn())
	if err != nil {
		return nil, err
	}

	var done []int64
	for _, m := range plan {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, conn.Conn(), r.FS, m); err != nil {
			return done, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		done = append(done, m.Version)
	}
	return done, nil
}

func appliedVersions(ctx context.Context, conn *pgx.Conn) (map[int64]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	vers, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(vers))
	for _, v := range vers {
		out[v] = true
	}
	return out, nil
}

func apply(ctx context.Context, conn *pgx.Conn, fsys fs.FS, m Migration) error {
	sql, err := fs.ReadFile(fsys, m.Path)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, m.Version, m.Name)
		return err
	})
}
