package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a looked up row does not exist
var ErrNotFound = errors.New("record not found")

// ErrMaxDepth is returned when a reply would nest deeper than MaxCommentDepth
var ErrMaxDepth = errors.New("maximum comment depth reached")

// MaxCommentDepth bounds the levels of a comment thread, top-level comments included
const MaxCommentDepth = 6

// Store is the relational persistence of the social graph, direct messages
// and notifications
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens the database selected by configuration and migrates the schema
func New(cfg *config.DatabaseConfig, lg *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	case "mysql":
		dialector = mysql.Open(cfg.GetDSN())
	case "sqlite":
		if err := cfg.EnsureSQLiteDir(); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	return Open(dialector, lg)
}

// Open migrates and wraps an already selected dialector
func Open(dialector gorm.Dialector, lg *zap.Logger) (*Store, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// one connection keeps in-memory databases alive and serialises writers
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := gormDB.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: gormDB, logger: lg.Named("store")}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside a transaction carried by the context. A
// transaction already on ctx is reused.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if TransactionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTransaction(ctx, tx))
	})
}

// conn returns the transaction on ctx or the base handle
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx := TransactionFromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func newID() string {
	return uuid.NewString()
}

// notFound maps gorm's sentinel to ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
