// Package store keeps customers and orders in a relational database through gorm
// and answers the KPI queries with SQL aggregation.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kpiload/models"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const DefaultBatchSize = 1000

type Options struct {
	Driver          string
	DSN             string
	CreateBatchSize int
	ConflictPolicy  ConflictPolicy
}

// Store is an explicitly opened handle; callers own its lifetime and must Close it.
type Store struct {
	db        *gorm.DB
	batchSize int
	policy    ConflictPolicy
	Logger    *log.Logger
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects and pings the database. A store that cannot be reached is an error right away, there is no retry.
func Open(ctx context.Context, opts Options, logger *log.Logger) (*Store, error) {
	d, err := dialector(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", d.Name())
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get database handle")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "ping %s database", d.Name())
	}

	batchSz := opts.CreateBatchSize
	if batchSz <= 0 {
		batchSz = DefaultBatchSize
	}
	policy := opts.ConflictPolicy
	if policy == "" {
		policy = IgnoreRow
	}
	logger.Infof("connected to %s database", d.Name())
	return &Store{db: db, batchSize: batchSz, policy: policy, Logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dialect is the name of the gorm dialector in use.
func (s *Store) Dialect() string {
	return s.db.Dialector.Name()
}

func (s *Store) BatchSize() int {
	return s.batchSize
}

func (s *Store) InitTables(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&models.Customer{}, &models.Order{}, &models.IngestRun{})
	return errors.Wrap(err, "migrate tables")
}

// Counts returns the number of stored customers and orders.
func (s *Store) Counts(ctx context.Context) (customers int64, orders int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&models.Customer{}).Count(&customers).Error; err != nil {
		return 0, 0, errors.Wrap(err, "count customers")
	}
	if err = db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		return 0, 0, errors.Wrap(err, "count orders")
	}
	return customers, orders, nil
}

// AllCustomers and AllOrders read the stored tables back, e.g. to run the memory engine over them.
func (s *Store) AllCustomers(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	err := s.db.WithContext(ctx).Order("customer_id").Find(&out).Error
	return out, errors.Wrap(err, "read customers")
}

func (s *Store) AllOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := s.db.WithContext(ctx).Order("order_date_time, order_id").Find(&out).Error
	return out, errors.Wrap(err, "read orders")
}
