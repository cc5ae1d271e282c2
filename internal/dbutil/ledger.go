// Package dbutil persists deployments so live-network runs can reuse them.
package dbutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"

	"github.com/VectorBits/fundlab/internal/config"
	"github.com/VectorBits/fundlab/internal/logger"
)

type DeploymentRecord struct {
	ID           uint      `gorm:"column:id;primaryKey"`
	Network      string    `gorm:"column:network;uniqueIndex:idx_deployments_network_name;not null"`
	Name         string    `gorm:"column:name;uniqueIndex:idx_deployments_network_name;not null"`
	Contract     string    `gorm:"column:contract"`
	Address      string    `gorm:"column:address;not null"`
	TxHash       string    `gorm:"column:tx_hash"`
	BlockNumber  uint64    `gorm:"column:block_number"`
	Deployer     string    `gorm:"column:deployer"`
	BytecodeHash string    `gorm:"column:bytecode_hash"`
	ABI          string    `gorm:"column:abi"`
	Args         string    `gorm:"column:args"`
	// EncodedArgs is the hex ABI-encoded constructor input, without 0x.
	EncodedArgs  string    `gorm:"column:encoded_args"`
	Verified     bool      `gorm:"column:verified"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (DeploymentRecord) TableName() string {
	return "deployments"
}

// Ledger is the deployment table. A nil *Ledger is valid and stores nothing.
type Ledger struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects the configured driver. Driver "none" yields a nil ledger.
func Open(cfg config.DatabaseConfig) (*Ledger, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		return OpenSQLite(cfg.DSN)
	case "postgres":
		return OpenPostgres(cfg.DSN)
	case "mysql":
		return OpenMySQL(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func OpenSQLite(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	return newLedger(db)
}

func OpenPostgres(dsn string) (*Ledger, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return newLedger(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

func newLedger(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&DeploymentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate deployments table: %w", err)
	}
	return &Ledger{db: db, log: logger.New("ledger")}, nil
}

// Find returns the record for (network, name), or nil when there is none.
func (l *Ledger) Find(ctx context.Context, network, name string) (*DeploymentRecord, error) {
	if l == nil {
		return nil, nil
	}
	var rec DeploymentRecord
	err := l.db.WithContext(ctx).
		Where("network = ? AND name = ?", network, name).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deployment %s/%s: %w", network, name, err)
	}
	return &rec, nil
}

// Save inserts rec or replaces the existing row for its (network, name).
func (l *Ledger) Save(ctx context.Context, rec *DeploymentRecord) error {
	if l == nil {
		return nil
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "network"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"contract", "address", "tx_hash", "block_number", "deployer", "bytecode_hash", "abi", "args", "encoded_args",
			"verified", "updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save deployment %s/%s: %w", rec.Network, rec.Name, err)
	}
	l.log.Debug().Str(logger.FieldNetwork, rec.Network).Str(logger.FieldContract, rec.Name).
		Str(logger.FieldAddress, rec.Address).Msg("Recorded deployment")
	return nil
}

func (l *Ledger) MarkVerified(ctx context.Context, network, name string) error {
	if l == nil {
		return nil
	}
	return l.db.WithContext(ctx).Model(&DeploymentRecord{}).
		Where("network = ? AND name = ?", network, name).
		Update("verified", true).Error
}

func (l *Ledger) List(ctx context.Context, network string) ([]DeploymentRecord, error) {
	if l == nil {
		return nil, nil
	}
	var out []DeploymentRecord
	q := l.db.WithContext(ctx).Order("name")
	if network != "" {
		q = q.Where("network = ?", network)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
