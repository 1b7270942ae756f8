package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

// Provider 는 gorm 핸들을 제공한다.
type Provider interface {
	DB(ctx context.Context) (*gorm.DB, error)
}

// Postgres 는 첫 사용 시점에 연결하는 Postgres 핸들이다.
// DB가 내려가 있어도 서버 기동은 막지 않는다.
type Postgres struct {
	cfg    *config.Config
	logger *slog.Logger
	mu     sync.Mutex
	db     *gorm.DB
	sqlDB  *sql.DB
}

// NewPostgres 는 지연 연결 Postgres 핸들을 생성한다.
func NewPostgres(cfg *config.Config, logger *slog.Logger) *Postgres {
	return &Postgres{
		cfg:    cfg,
		logger: logger,
	}
}

// DB 는 연결된 gorm 핸들을 반환한다. 필요하면 이 시점에 연결한다.
func (p *Postgres) DB(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return p.db, nil
	}
	if p.cfg == nil {
		return nil, errors.New("database config is nil")
	}

	hostUsed := p.cfg.Database.Host
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	db, err := gorm.Open(postgres.Open(p.cfg.Database.DSN()), gormCfg)
	if err != nil && shouldFallbackToLocalhost(err, p.cfg.Database.Host) {
		fallback := p.cfg.Database
		fallback.Host = "127.0.0.1"
		db, err = gorm.Open(postgres.Open(fallback.DSN()), gormCfg)
		if err == nil {
			hostUsed = fallback.Host
			if p.logger != nil {
				p.logger.Warn(
					"db_host_fallback",
					"configured_host", p.cfg.Database.Host,
					"effective_host", hostUsed,
				)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get db handle: %w", err)
	}

	sqlDB.SetMaxIdleConns(p.cfg.Database.MinPool)
	sqlDB.SetMaxOpenConns(p.cfg.Database.MaxPool)
	if p.cfg.Database.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if p.cfg.Database.ConnMaxIdleTimeMinutes > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.cfg.Database.ConnMaxIdleTimeMinutes) * time.Minute)
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "db_connected", "host", hostUsed, "name", p.cfg.Database.Name)
	}

	p.db = db
	p.sqlDB = sqlDB
	return db, nil
}

// Ping 은 연결 상태를 확인한다.
func (p *Postgres) Ping(ctx context.Context) error {
	db, err := p.DB(ctx)
	if err != nil {
		return err
	}
	return Ping(ctx, db)
}

// Close 는 DB 연결을 닫는다.
func (p *Postgres) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sqlDB == nil {
		return
	}
	_ = p.sqlDB.Close()
	p.sqlDB = nil
	p.db = nil
}

// Static 은 이미 열린 gorm 핸들을 Provider 로 감싼다.
type Static struct {
	Handle *gorm.DB
}

// DB 는 감싼 핸들을 반환한다.
func (s Static) DB(context.Context) (*gorm.DB, error) {
	if s.Handle == nil {
		return nil, errors.New("db is nil")
	}
	return s.Handle, nil
}

// Ping 은 gorm 핸들 아래의 sql.DB 로 연결을 확인한다.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get db handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

func shouldFallbackToLocalhost(err error, host string) bool {
	if err == nil {
		return false
	}
	if host == "" || host == "127.0.0.1" || strings.EqualFold(host, "localhost") {
		return false
	}
	if !strings.EqualFold(host, "postgres") {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return strings.EqualFold(dnsErr.Name, host)
	}

	lower := strings.ToLower(err.Error())
	hostLower := strings.ToLower(host)
	if strings.Contains(lower, "lookup "+hostLower) && strings.Contains(lower, "no such host") {
		return true
	}
	return strings.Contains(lower, "no such host") && strings.Contains(lower, hostLower)
}
