package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace-gateway/middleware/security/domain"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RateLimitRow é a tabela rate_limits.
type RateLimitRow struct {
	ID         uint64 `gorm:"primaryKey"`
	Identifier string `gorm:"size:255;not null;index:idx_rate_limits_identifier_ts,priority:1"`
	Timestamp  int64  `gorm:"not null;index:idx_rate_limits_identifier_ts,priority:2;index:idx_rate_limits_ts"`
	Endpoint   string `gorm:"size:255"`
	CreatedAt  time.Time
}

func (RateLimitRow) TableName() string { return "rate_limits" }

// SecurityLogRow é a tabela security_logs (append-only).
type SecurityLogRow struct {
	ID        uint64         `gorm:"primaryKey"`
	EventType string         `gorm:"size:64;not null;index"`
	Severity  string         `gorm:"size:16;not null"`
	Message   string         `gorm:"size:1024"`
	Metadata  datatypes.JSON `gorm:"not null"`
	UserID    *string        `gorm:"size:64;index"`
	ClientIP  *string        `gorm:"size:64"`
	UserAgent *string        `gorm:"size:255"`
	CreatedAt time.Time      `gorm:"index"`
}

func (SecurityLogRow) TableName() string { return "security_logs" }

// OpenDatabase abre sqlite ou postgres com ajustes básicos.
func OpenDatabase(driver, dsn string, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLogger := logger.Default
	if !verbose {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if driver == "sqlite" {
		// sqlite aceita um escritor por vez
		sqlDB.SetMaxOpenConns(1)
		_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
		_, _ = sqlDB.Exec("PRAGMA synchronous = NORMAL;")
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
	}
	return db, nil
}

// Migrate cria as tabelas do gateway.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RateLimitRow{}, &SecurityLogRow{})
}

// GormRateLimitStore guarda os registros na tabela rate_limits.
type GormRateLimitStore struct {
	db *gorm.DB
}

func NewGormRateLimitStore(db *gorm.DB) *GormRateLimitStore {
	return &GormRateLimitStore{db: db}
}

func (s *GormRateLimitStore) DeleteBefore(ctx context.Context, cutoff int64) error {
	return s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&RateLimitRow{}).Error
}

type windowRow struct {
	Count  int64
	Oldest sql.NullInt64
}

func (s *GormRateLimitStore) Window(ctx context.Context, identifier string, since int64) (domain.WindowStats, error) {
	var out windowRow
	err := s.db.WithContext(ctx).
		Model(&RateLimitRow{}).
		Select("COUNT(*) AS count, MIN(timestamp) AS oldest").
		Where("identifier = ? AND timestamp >= ?", identifier, since).
		Scan(&out).Error
	if err != nil {
		return domain.WindowStats{}, err
	}
	return domain.WindowStats{Count: int(out.Count), Oldest: out.Oldest.Int64}, nil
}

func (s *GormRateLimitStore) Insert(ctx context.Context, rec domain.RateLimitRecord) error {
	return s.db.WithContext(ctx).Create(&RateLimitRow{
		Identifier: rec.Identifier,
		Timestamp:  rec.Timestamp,
		Endpoint:   rec.Endpoint,
	}).Error
}

// GormAuditStore grava eventos na tabela security_logs.
type GormAuditStore struct {
	db *gorm.DB
}

func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db}
}

func (s *GormAuditStore) Append(ctx context.Context, ev domain.SecurityLogEvent) error {
	meta := ev.Metadata
	if len(meta) == 0 {
		meta = []byte("{}")
	}
	row := SecurityLogRow{
		EventType: ev.EventType,
		Severity:  string(ev.Severity),
		Message:   ev.Message,
		Metadata:  datatypes.JSON(meta),
		UserID:    optional(ev.UserID),
		ClientIP:  optional(ev.ClientIP),
		UserAgent: optional(ev.UserAgent),
		CreatedAt: ev.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Recent devolve os últimos eventos, mais novos primeiro.
func (s *GormAuditStore) Recent(ctx context.Context, limit int) ([]SecurityLogRow, error) {
	var rows []SecurityLogRow
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
