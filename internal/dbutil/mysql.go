package dbutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	mysqlPingTimeout = 2 * time.Second
	// ER_BAD_DB_ERROR
	mysqlUnknownDatabase = 1049
)

// OpenMySQL connects to dsn, creating the database first when the server
// reports it unknown.
func OpenMySQL(dsn string) (*Ledger, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is empty")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	ctx := context.Background()
	db, err := openMySQLPool(ctx, cfg)
	if err != nil {
		var myErr *mysql.MySQLError
		if !errors.As(err, &myErr) || myErr.Number != mysqlUnknownDatabase || cfg.DBName == "" {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		if err := createMySQLDatabase(ctx, cfg); err != nil {
			return nil, err
		}
		if db, err = openMySQLPool(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: db}), gormConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return newLedger(gdb)
}

func openMySQLPool(ctx context.Context, cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	ctx, cancel := context.WithTimeout(ctx, mysqlPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func createMySQLDatabase(ctx context.Context, cfg *mysql.Config) error {
	root := cfg.Clone()
	root.DBName = ""
	db, err := openMySQLPool(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to connect to MySQL server: %w", err)
	}
	defer db.Close()

	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.DBName)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %s: %w", cfg.DBName, err)
	}
	return nil
}
