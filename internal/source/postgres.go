package source

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cart-analytics/internal/models"
)

// Table names used by the Postgres loader.
const (
	OrdersTable       = "orders"
	CustomersTable    = "customers"
	ItemsTable        = "order_items"
	PaymentsTable     = "order_payments"
	ProductsTable     = "products"
	TranslationsTable = "product_category_name_translation"
)

// Postgres reads the raw tables from a database loaded with the public dataset.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing gorm handle.
func NewPostgresFromDB(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Name() string {
	return "postgres"
}

func (p *Postgres) Load(ctx context.Context) (*models.Dataset, error) {
	ds := &models.Dataset{}
	db := p.db.WithContext(ctx)

	tables := []struct {
		name string
		dest any
	}{
		{OrdersTable, &ds.Orders},
		{CustomersTable, &ds.Customers},
		{ItemsTable, &ds.Items},
		{PaymentsTable, &ds.Payments},
		{ProductsTable, &ds.Products},
		{TranslationsTable, &ds.Translations},
	}
	for _, t := range tables {
		if err := db.Table(t.name).Find(t.dest).Error; err != nil {
			return nil, fmt.Errorf("load %s: %w", t.name, err)
		}
	}
	return ds, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
