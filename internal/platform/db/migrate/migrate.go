package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	// postgres:// スキームのドライバーを登録します。
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ogurasousui/company-registry/assets"
)

// Result はマイグレーションの結果です。
type Result struct {
	Version uint
	Dirty   bool
	// Applied が false の場合、バージョンは未適用です。
	Applied bool
}

// Run は action (up, down, drop, version) を dsn のデータベースに適用します。
// dir が空の場合はバイナリに同梱されたマイグレーションを使います。
func Run(action, dir, dsn string) (Result, error) {
	m, err := newMigrate(dir, dsn)
	if err != nil {
		return Result{}, err
	}
	defer m.Close()

	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return Result{}, err
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return Result{}, err
		}
	case "drop":
		if err := m.Drop(); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	case "version":
	default:
		return Result{}, fmt.Errorf("unsupported action %q", action)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return Result{}, nil
		}
		return Result{}, err
	}
	return Result{Version: version, Dirty: dirty, Applied: true}, nil
}

func newMigrate(dir, dsn string) (*migrate.Migrate, error) {
	if dir == "" {
		sub, err := fs.Sub(assets.Migrations, "migrations")
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		src, err := iofs.New(sub, ".")
		if err != nil {
			return nil, fmt.Errorf("create migration source: %w", err)
		}
		m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
		if err != nil {
			return nil, fmt.Errorf("create migrate instance: %w", err)
		}
		return m, nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
