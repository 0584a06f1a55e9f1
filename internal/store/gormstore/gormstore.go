// Package gormstore implements store.Store on MySQL through gorm. Ledger reads
// inside a transaction use SELECT ... FOR UPDATE, and the connection carries a
// bounded innodb_lock_wait_timeout so a contended row fails fast instead of
// hanging the request.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"core_bank/internal/domain"
	"core_bank/internal/store"
)

// MySQL server error numbers
const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Config holds the connection settings.
type Config struct {
	User            string        // Database user
	Password        string        // Database password
	Host            string        // Database host
	Port            string        // Database port
	Name            string        // Database name
	LockWaitTimeout time.Duration // innodb_lock_wait_timeout, rounded up to whole seconds
	MaxOpenConns    int           // Connection pool size, 0 keeps the driver default
}

// DSN builds the go-sql-driver data source name for cfg.
func DSN(cfg Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	if cfg.LockWaitTimeout > 0 {
		secs := int((cfg.LockWaitTimeout + time.Second - 1) / time.Second)
		mc.Params = map[string]string{"innodb_lock_wait_timeout": strconv.Itoa(secs)}
	}
	return mc.FormatDSN()
}

// Open connects to MySQL and returns a Store.
func Open(cfg Config) (*Store, error) {
	db, err := gorm.Open(gormmysql.Open(DSN(cfg)), &gorm.Config{
		TranslateError: true,                                // Map driver duplicate-key errors to gorm.ErrDuplicatedKey
		Logger:         logger.Default.LogMode(logger.Warn), // SQL statements carry balances, keep them out of info logs
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gormstore: pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return New(db), nil
}

// Store is a store.Store backed by a gorm connection pool.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transact runs fn inside a database transaction bound to ctx.
func (s *Store) Transact(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&tx{db: gtx})
	})
	return translate(err)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return (&tx{db: s.db.WithContext(ctx)}).UserByUsername(username)
}

func (s *Store) UserByID(ctx context.Context, id uint) (*domain.User, error) {
	return (&tx{db: s.db.WithContext(ctx)}).UserByID(id)
}

func (s *Store) AccountByUser(ctx context.Context, userID uint) (*domain.Account, error) {
	var a domain.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *Store) CreditCardByUser(ctx context.Context, userID uint) (*domain.CreditCard, error) {
	var c domain.CreditCard
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) Movements(ctx context.Context, accountID uint, offset, limit int) ([]domain.Movement, int64, error) {
	touching := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&domain.Movement{}).
			Where("from_account_id = ? OR to_account_id = ?", accountID, accountID)
	}
	var total int64
	if err := touching().Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	movements := []domain.Movement{}
	if err := touching().Order("created_at desc, id desc").Offset(offset).Limit(limit).Find(&movements).Error; err != nil {
		return nil, 0, translate(err)
	}
	return movements, total, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

type tx struct {
	db *gorm.DB
}

func (t *tx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *tx) UserByUsername(username string) (*domain.User, error) {
	var u domain.User
	if err := t.db.Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *tx) UserByID(id uint) (*domain.User, error) {
	var u domain.User
	if err := t.db.First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *tx) CreateUser(u *domain.User) error {
	return translate(t.db.Omit(clause.Associations).Create(u).Error)
}

func (t *tx) CreateClient(c *domain.Client) error {
	return translate(t.db.Create(c).Error)
}

func (t *tx) CreateAccount(a *domain.Account) error {
	return translate(t.db.Create(a).Error)
}

func (t *tx) CreateCreditCard(c *domain.CreditCard) error {
	return translate(t.db.Create(c).Error)
}

func (t *tx) AccountIDByUser(userID uint) (uint, error) {
	var a domain.Account
	if err := t.db.Select("id").Where("user_id = ?", userID).First(&a).Error; err != nil {
		return 0, translate(err)
	}
	return a.ID, nil
}

// LockAccounts issues one SELECT ... ORDER BY id FOR UPDATE so InnoDB takes
// the row locks in ascending primary-key order.
func (t *tx) LockAccounts(ids ...uint) (map[uint]*domain.Account, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))
	var rows []domain.Account
	if err := t.forUpdate().Where("id IN ?", unique).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	if len(rows) != len(unique) {
		return nil, store.ErrNotFound
	}
	out := make(map[uint]*domain.Account, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (t *tx) UpdateAccountBalance(id uint, balance decimal.Decimal) error {
	return translate(t.db.Model(&domain.Account{}).Where("id = ?", id).Update("balance", balance).Error)
}

func (t *tx) LockCreditCardByUser(userID uint) (*domain.CreditCard, error) {
	var c domain.CreditCard
	if err := t.forUpdate().Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (t *tx) UpdateCreditCardDebt(id uint, debt decimal.Decimal) error {
	return translate(t.db.Model(&domain.CreditCard{}).Where("id = ?", id).Update("balance", debt).Error)
}

func (t *tx) RecordMovement(m *domain.Movement) error {
	return translate(t.db.Create(m).Error)
}

// translate maps gorm and MySQL errors onto the store sentinels and leaves
// everything else, including errors returned by transaction callbacks, as is.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", store.ErrLockTimeout, err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDuplicateEntry:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %v", store.ErrLockTimeout, err)
		}
	}
	return err
}
