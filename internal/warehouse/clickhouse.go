package warehouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"cart-analytics/internal/config"
	"cart-analytics/internal/models"
)

const defaultBatchSize = 10000

type rowBatch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

type inserter interface {
	Exec(ctx context.Context, query string, args ...any) error
	PrepareInsert(ctx context.Context, query string) (rowBatch, error)
	Close() error
}

type nativeConn struct {
	driver.Conn
}

func (c nativeConn) PrepareInsert(ctx context.Context, query string) (rowBatch, error) {
	return c.Conn.PrepareBatch(ctx, query)
}

// Client writes fact tables to ClickHouse.
type Client struct {
	conn      inserter
	database  string
	table     string
	batchSize int
	logger    *slog.Logger
}

func NewClient(ctx context.Context, cfg config.WarehouseConfig, logger *slog.Logger) (*Client, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		DialTimeout:  30 * time.Second,
	}
	// 8443 is the TLS native port
	if cfg.Port == 8443 {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return newClient(nativeConn{conn}, cfg, logger), nil
}

func newClient(conn inserter, cfg config.WarehouseConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:      conn,
		database:  cfg.Database,
		table:     cfg.FactTable,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) qualified() string {
	return fmt.Sprintf("%s.%s", c.database, c.table)
}

// EnsureTable creates the fact table when missing. Rows are keyed by run so
// several exports can coexist and be compared.
func (c *Client) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			order_id String,
			customer_id String,
			order_status LowCardinality(String),
			order_purchase_timestamp DateTime,
			order_approved_at Nullable(DateTime),
			order_delivered_carrier_date Nullable(DateTime),
			order_delivered_customer_date Nullable(DateTime),
			order_estimated_delivery_date Nullable(DateTime),
			order_date Date,
			order_year UInt16,
			order_month UInt8,
			order_quarter UInt8,
			order_day_of_week UInt8,
			order_day_name LowCardinality(String),
			order_hour UInt8,
			day_type LowCardinality(String),
			is_weekend Bool,
			hours_to_approval Nullable(Int32),
			days_to_delivery Nullable(Int32),
			customer_unique_id Nullable(String),
			customer_zip_code_prefix Nullable(String),
			customer_city Nullable(String),
			customer_state Nullable(String),
			cart_status LowCardinality(String),
			is_abandoned UInt8,
			is_completed UInt8,
			cart_size UInt32,
			cart_value Float64,
			avg_item_price Float64,
			total_freight Float64,
			unique_sellers UInt32,
			total_payment_value Float64,
			payment_installments UInt16,
			primary_payment_type Nullable(String),
			primary_category Nullable(String),
			primary_category_english Nullable(String),
			unique_categories UInt32,
			exported_at DateTime
		) ENGINE = MergeTree
		ORDER BY (run_id, order_id)
	`, c.qualified())

	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", c.qualified(), err)
	}
	return nil
}

// ExportFacts batch-inserts facts tagged with runID. It returns the number
// of rows sent; on error the current batch is aborted.
func (c *Client) ExportFacts(ctx context.Context, runID string, facts []models.OrderFact) (int, error) {
	exportedAt := time.Now().UTC().Truncate(time.Second)
	query := fmt.Sprintf("INSERT INTO %s", c.qualified())

	sent := 0
	for lo := 0; lo < len(facts); lo += c.batchSize {
		hi := min(lo+c.batchSize, len(facts))

		batch, err := c.conn.PrepareInsert(ctx, query)
		if err != nil {
			return sent, fmt.Errorf("prepare batch: %w", err)
		}
		for i := lo; i < hi; i++ {
			if err := batch.Append(factRow(runID, &facts[i], exportedAt)...); err != nil {
				batch.Abort()
				return sent, fmt.Errorf("append %s: %w", facts[i].OrderID, err)
			}
		}
		if err := batch.Send(); err != nil {
			return sent, fmt.Errorf("send batch: %w", err)
		}
		sent += hi - lo
		c.logger.Debug("warehouse batch sent", "table", c.qualified(), "rows", hi-lo, "total", sent)
	}

	c.logger.Info("facts exported", "table", c.qualified(), "run_id", runID, "rows", sent)
	return sent, nil
}

// factRow orders values as the table columns, with Go types the native
// protocol maps without conversion.
func factRow(runID string, f *models.OrderFact, exportedAt time.Time) []any {
	day := time.Date(f.PurchaseTimestamp.Year(), f.PurchaseTimestamp.Month(), f.PurchaseTimestamp.Day(), 0, 0, 0, 0, time.UTC)
	return []any{
		runID,
		f.OrderID,
		f.CustomerID,
		string(f.OrderStatus),
		f.PurchaseTimestamp,
		f.ApprovedAt,
		f.DeliveredCarrierDate,
		f.DeliveredCustomerDate,
		f.EstimatedDeliveryDate,
		day,
		uint16(f.OrderYear),
		uint8(f.OrderMonth),
		uint8(f.OrderQuarter),
		uint8(f.OrderDayOfWeek),
		f.OrderDayName,
		uint8(f.OrderHour),
		f.DayType,
		f.IsWeekend,
		int32Ptr(f.HoursToApproval),
		int32Ptr(f.DaysToDelivery),
		f.CustomerUniqueID,
		f.CustomerZipCode,
		f.CustomerCity,
		f.CustomerState,
		string(f.CartStatus),
		uint8(f.IsAbandoned),
		uint8(f.IsCompleted),
		uint32(f.CartSize),
		f.CartValue,
		f.AvgItemPrice,
		f.TotalFreight,
		uint32(f.UniqueSellers),
		f.TotalPaymentValue,
		uint16(f.PaymentInstallments),
		f.PrimaryPaymentType,
		f.PrimaryCategory,
		f.PrimaryCategoryEnglish,
		uint32(f.UniqueCategories),
		exportedAt,
	}
}

func int32Ptr(n *int) *int32 {
	if n == nil {
		return nil
	}
	v := int32(*n)
	return &v
}
