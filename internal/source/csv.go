package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cart-analytics/internal/models"
)

const (
	OrdersFile       = "olist_orders_dataset.csv"
	CustomersFile    = "olist_customers_dataset.csv"
	ItemsFile        = "olist_order_items_dataset.csv"
	PaymentsFile     = "olist_order_payments_dataset.csv"
	ProductsFile     = "olist_products_dataset.csv"
	TranslationsFile = "product_category_name_translation.csv"
)

// TimestampLayout is how the public dataset writes timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Files lists the inputs in load order.
var Files = []string{OrdersFile, CustomersFile, ItemsFile, PaymentsFile, ProductsFile, TranslationsFile}

// CSVDir loads the six dataset files from one directory. Columns are matched
// by header name so column order does not matter.
type CSVDir struct {
	Dir string
}

func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{Dir: dir}
}

func (s *CSVDir) Name() string {
	return "csv:" + s.Dir
}

// Version fingerprints the inputs by size and modification time.
func (s *CSVDir) Version() (string, error) {
	var b strings.Builder
	for _, name := range Files {
		info, err := os.Stat(filepath.Join(s.Dir, name))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		fmt.Fprintf(&b, "%s:%d:%d;", name, info.Size(), info.ModTime().UnixNano())
	}
	return b.String(), nil
}

// Load fails only when a file is missing or its header lacks a required
// column. Rows that do not parse are recorded in Dataset.Rejected.
func (s *CSVDir) Load(ctx context.Context) (*models.Dataset, error) {
	ds := &models.Dataset{}

	steps := []struct {
		file   string
		entity string
		cols   []string
		row    func(r *row) error
	}{
		{OrdersFile, models.EntityOrder, orderColumns, func(r *row) error {
			o, err := parseOrder(r)
			if err == nil {
				ds.Orders = append(ds.Orders, o)
			}
			return err
		}},
		{CustomersFile, models.EntityCustomer, customerColumns, func(r *row) error {
			ds.Customers = append(ds.Customers, models.Customer{
				CustomerID:       r.str("customer_id"),
				CustomerUniqueID: r.str("customer_unique_id"),
				ZipCodePrefix:    r.str("customer_zip_code_prefix"),
				City:             r.str("customer_city"),
				State:            r.str("customer_state"),
			})
			return nil
		}},
		{ItemsFile, models.EntityItem, itemColumns, func(r *row) error {
			it, err := parseItem(r)
			if err == nil {
				ds.Items = append(ds.Items, it)
			}
			return err
		}},
		{PaymentsFile, models.EntityPayment, paymentColumns, func(r *row) error {
			p, err := parsePayment(r)
			if err == nil {
				ds.Payments = append(ds.Payments, p)
			}
			return err
		}},
		{ProductsFile, models.EntityProduct, productColumns, func(r *row) error {
			p, err := parseProduct(r)
			if err == nil {
				ds.Products = append(ds.Products, p)
			}
			return err
		}},
		{TranslationsFile, models.EntityTranslation, translationColumns, func(r *row) error {
			ds.Translations = append(ds.Translations, models.CategoryTranslation{
				CategoryName:        r.str("product_category_name"),
				CategoryNameEnglish: r.str("product_category_name_english"),
			})
			return nil
		}},
	}

	for _, step := range steps {
		rejected, err := readTable(ctx, filepath.Join(s.Dir, step.file), step.entity, step.cols, step.row)
		if err != nil {
			return nil, err
		}
		ds.Rejected = append(ds.Rejected, rejected...)
	}
	return ds, nil
}

var (
	orderColumns = []string{
		"order_id", "customer_id", "order_status", "order_purchase_timestamp",
		"order_approved_at", "order_delivered_carrier_date",
		"order_delivered_customer_date", "order_estimated_delivery_date",
	}
	customerColumns = []string{
		"customer_id", "customer_unique_id", "customer_zip_code_prefix",
		"customer_city", "customer_state",
	}
	itemColumns = []string{
		"order_id", "order_item_id", "product_id", "seller_id",
		"shipping_limit_date", "price", "freight_value",
	}
	paymentColumns = []string{
		"order_id", "payment_sequential", "payment_type",
		"payment_installments", "payment_value",
	}
	productColumns = []string{
		"product_id", "product_category_name", "product_name_lenght",
		"product_description_lenght", "product_photos_qty", "product_weight_g",
		"product_length_cm", "product_height_cm", "product_width_cm",
	}
	translationColumns = []string{"product_category_name", "product_category_name_english"}
)

var ErrMissingColumn = errors.New("missing column")

func readTable(ctx context.Context, path, entity string, cols []string, fn func(*row) error) ([]models.Rejection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range cols {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%s: %w %q", filepath.Base(path), ErrMissingColumn, c)
		}
	}

	var rejected []models.Rejection
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
			}
			rejected = append(rejected, models.Rejection{
				Entity: entity,
				Key:    fmt.Sprintf("line %d", line),
				Reason: err.Error(),
			})
			continue
		}

		rw := &row{index: index, record: record}
		if err := fn(rw); err != nil {
			key := rw.str(cols[0])
			if key == "" {
				key = fmt.Sprintf("line %d", line)
			}
			rejected = append(rejected, models.Rejection{Entity: entity, Key: key, Reason: err.Error()})
		}
	}
	return rejected, nil
}

type row struct {
	index  map[string]int
	record []string
}

func (r *row) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r *row) timestamp(col string) (*time.Time, error) {
	v := r.str(col)
	if v == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	return &t, nil
}

func (r *row) integer(col string) (int, error) {
	v := r.str(col)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// product dimensions are published as floats ("40.0")
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%s: invalid integer %q", col, v)
		}
		n = int(f)
	}
	return n, nil
}

func (r *row) number(col string) (float64, error) {
	v := r.str(col)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", col, v)
	}
	return f, nil
}

func ParseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseOrder(r *row) (models.Order, error) {
	o := models.Order{
		OrderID:    r.str("order_id"),
		CustomerID: r.str("customer_id"),
		Status:     models.OrderStatus(r.str("order_status")),
	}
	purchase, err := r.timestamp("order_purchase_timestamp")
	if err != nil {
		return o, err
	}
	if purchase == nil {
		return o, errors.New("order_purchase_timestamp: empty")
	}
	o.PurchaseTimestamp = *purchase
	if o.ApprovedAt, err = r.timestamp("order_approved_at"); err != nil {
		return o, err
	}
	if o.DeliveredCarrierDate, err = r.timestamp("order_delivered_carrier_date"); err != nil {
		return o, err
	}
	if o.DeliveredCustomerDate, err = r.timestamp("order_delivered_customer_date"); err != nil {
		return o, err
	}
	if o.EstimatedDeliveryDate, err = r.timestamp("order_estimated_delivery_date"); err != nil {
		return o, err
	}
	return o, nil
}

func parseItem(r *row) (models.OrderItem, error) {
	it := models.OrderItem{
		OrderID:   r.str("order_id"),
		ProductID: r.str("product_id"),
		SellerID:  r.str("seller_id"),
	}
	var err error
	if it.OrderItemID, err = r.integer("order_item_id"); err != nil {
		return it, err
	}
	if it.ShippingLimitDate, err = r.timestamp("shipping_limit_date"); err != nil {
		return it, err
	}
	if it.Price, err = r.number("price"); err != nil {
		return it, err
	}
	if it.FreightValue, err = r.number("freight_value"); err != nil {
		return it, err
	}
	return it, nil
}

func parsePayment(r *row) (models.Payment, error) {
	p := models.Payment{
		OrderID:     r.str("order_id"),
		PaymentType: models.PaymentType(r.str("payment_type")),
	}
	var err error
	if p.PaymentSequential, err = r.integer("payment_sequential"); err != nil {
		return p, err
	}
	if p.PaymentInstallments, err = r.integer("payment_installments"); err != nil {
		return p, err
	}
	if p.PaymentValue, err = r.number("payment_value"); err != nil {
		return p, err
	}
	return p, nil
}

func parseProduct(r *row) (models.Product, error) {
	p := models.Product{
		ProductID:    r.str("product_id"),
		CategoryName: r.str("product_category_name"),
	}
	var err error
	for _, f := range []struct {
		col string
		dst *int
	}{
		{"product_name_lenght", &p.NameLength},
		{"product_description_lenght", &p.DescriptionLength},
		{"product_photos_qty", &p.PhotosQty},
	} {
		if *f.dst, err = r.integer(f.col); err != nil {
			return p, err
		}
	}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{"product_weight_g", &p.WeightG},
		{"product_length_cm", &p.LengthCm},
		{"product_height_cm", &p.HeightCm},
		{"product_width_cm", &p.WidthCm},
	} {
		if *f.dst, err = r.number(f.col); err != nil {
			return p, err
		}
	}
	return p, nil
}
