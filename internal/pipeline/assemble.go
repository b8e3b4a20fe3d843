package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cart-analytics/internal/models"
)

const (
	defaultWorkers   = 8
	defaultChunkSize = 5000
	cancelCheckEvery = 1024
)

type Options struct {
	Workers   int
	ChunkSize int
}

// Gaps counts foreign keys without a matching row. None of them is fatal.
type Gaps struct {
	MissingCustomers     int `json:"missing_customers"`
	OrphanItems          int `json:"orphan_items"`
	OrphanPayments       int `json:"orphan_payments"`
	MissingProducts      int `json:"missing_products"`
	UntranslatedOrders   int `json:"untranslated_orders"`
	OrdersWithoutItems   int `json:"orders_without_items"`
	OrdersWithoutPayment int `json:"orders_without_payment"`
}

func (g *Gaps) add(o Gaps) {
	g.MissingCustomers += o.MissingCustomers
	g.OrphanItems += o.OrphanItems
	g.OrphanPayments += o.OrphanPayments
	g.MissingProducts += o.MissingProducts
	g.UntranslatedOrders += o.UntranslatedOrders
	g.OrdersWithoutItems += o.OrdersWithoutItems
	g.OrdersWithoutPayment += o.OrdersWithoutPayment
}

type Stats struct {
	Input       map[string]int `json:"input"`
	Facts       int            `json:"facts"`
	Rejected    int            `json:"rejected"`
	Chunks      int            `json:"chunks"`
	Duration    time.Duration  `json:"duration"`
	AssembledAt time.Time      `json:"assembled_at"`
}

// FactSet is the immutable output of one pipeline run.
type FactSet struct {
	RunID      string             `json:"run_id"`
	Facts      []models.OrderFact `json:"-"`
	Rejections []models.Rejection `json:"rejections"`
	Gaps       Gaps               `json:"gaps"`
	Stats      Stats              `json:"stats"`
}

type Assembler struct {
	opts      Options
	validator *Validator
	logger    *slog.Logger
}

func NewAssembler(opts Options, logger *slog.Logger) *Assembler {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		opts:      opts,
		validator: NewValidator(),
		logger:    logger,
	}
}

type index struct {
	customers map[string]*models.Customer
	items     map[string][]models.OrderItem
	payments  map[string][]models.Payment
	catalog   *Catalog
}

func buildIndex(ds *models.Dataset) (*index, Gaps) {
	idx := &index{
		customers: make(map[string]*models.Customer, len(ds.Customers)),
		items:     make(map[string][]models.OrderItem, len(ds.Orders)),
		payments:  make(map[string][]models.Payment, len(ds.Orders)),
		catalog:   NewCatalog(ds.Products, ds.Translations),
	}
	for i := range ds.Customers {
		idx.customers[ds.Customers[i].CustomerID] = &ds.Customers[i]
	}

	orders := make(map[string]struct{}, len(ds.Orders))
	for _, o := range ds.Orders {
		orders[o.OrderID] = struct{}{}
	}

	var gaps Gaps
	for _, it := range ds.Items {
		if _, ok := orders[it.OrderID]; !ok {
			gaps.OrphanItems++
			continue
		}
		idx.items[it.OrderID] = append(idx.items[it.OrderID], it)
	}
	for _, p := range ds.Payments {
		if _, ok := orders[p.OrderID]; !ok {
			gaps.OrphanPayments++
			continue
		}
		idx.payments[p.OrderID] = append(idx.payments[p.OrderID], p)
	}
	return idx, gaps
}

// Assemble produces exactly one fact per valid order. Orders are split into
// chunks processed concurrently; each chunk owns its own result slot so the
// merge needs no locking and preserves input order. On cancellation all
// partial results are discarded.
func (a *Assembler) Assemble(ctx context.Context, ds *models.Dataset) (*FactSet, error) {
	start := time.Now()

	clean, rejections := a.validator.Clean(ds)
	idx, gaps := buildIndex(clean)

	orders := clean.Orders
	nChunks := (len(orders) + a.opts.ChunkSize - 1) / a.opts.ChunkSize
	results := make([][]models.OrderFact, nChunks)
	chunkGaps := make([]Gaps, nChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	for c := 0; c < nChunks; c++ {
		lo := c * a.opts.ChunkSize
		hi := min(lo+a.opts.ChunkSize, len(orders))
		g.Go(func() error {
			facts := make([]models.OrderFact, 0, hi-lo)
			var local Gaps
			for i, o := range orders[lo:hi] {
				if i%cancelCheckEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				facts = append(facts, idx.fact(o, &local))
			}
			results[c] = facts
			chunkGaps[c] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assemble facts: %w", err)
	}

	facts := make([]models.OrderFact, 0, len(orders))
	for c := range results {
		facts = append(facts, results[c]...)
		gaps.add(chunkGaps[c])
	}

	fs := &FactSet{
		RunID:      uuid.NewString(),
		Facts:      facts,
		Rejections: rejections,
		Gaps:       gaps,
		Stats: Stats{
			Input:       ds.Counts(),
			Facts:       len(facts),
			Rejected:    len(rejections),
			Chunks:      nChunks,
			Duration:    time.Since(start),
			AssembledAt: time.Now().UTC(),
		},
	}

	a.logger.Info("facts assembled",
		"run_id", fs.RunID,
		"orders", len(ds.Orders),
		"facts", len(facts),
		"rejected", len(rejections),
		"chunks", nChunks,
		"workers", a.opts.Workers,
		"duration", fs.Stats.Duration,
	)
	if len(rejections) > 0 {
		a.logger.Warn("records rejected as invalid input", "count", len(rejections), "first", rejections[0].Error())
	}

	return fs, nil
}

func (idx *index) fact(o models.Order, gaps *Gaps) models.OrderFact {
	customer := idx.customers[o.CustomerID]
	if customer == nil {
		gaps.MissingCustomers++
	}
	items := idx.items[o.OrderID]
	payments := idx.payments[o.OrderID]
	if len(items) == 0 {
		gaps.OrdersWithoutItems++
	}
	if len(payments) == 0 {
		gaps.OrdersWithoutPayment++
	}

	e := Enrich(o, customer)
	m := AggregateCart(items, payments, idx.catalog)
	gaps.MissingProducts += m.MissingProducts
	if m.UntranslatedCategory {
		gaps.UntranslatedOrders++
	}

	return models.OrderFact{
		OrderID:               o.OrderID,
		CustomerID:            o.CustomerID,
		OrderStatus:           o.Status,
		PurchaseTimestamp:     o.PurchaseTimestamp,
		ApprovedAt:            o.ApprovedAt,
		DeliveredCarrierDate:  o.DeliveredCarrierDate,
		DeliveredCustomerDate: o.DeliveredCustomerDate,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,

		OrderDate:       e.OrderDate,
		OrderYear:       e.Year,
		OrderMonth:      e.Month,
		OrderQuarter:    e.Quarter,
		OrderDayOfWeek:  e.DayOfWeek,
		OrderDayName:    e.DayName,
		OrderHour:       e.Hour,
		DayType:         e.DayType,
		IsWeekend:       e.IsWeekend,
		HoursToApproval: e.HoursToApproval,
		DaysToDelivery:  e.DaysToDelivery,

		CustomerUniqueID: e.CustomerUniqueID,
		CustomerZipCode:  e.ZipCode,
		CustomerCity:     e.City,
		CustomerState:    e.State,

		CartStatus:  e.CartStatus,
		IsAbandoned: e.IsAbandoned,
		IsCompleted: e.IsCompleted,

		CartSize:               m.CartSize,
		CartValue:              m.CartValue,
		AvgItemPrice:           m.AvgItemPrice,
		TotalFreight:           m.TotalFreight,
		UniqueSellers:          m.UniqueSellers,
		TotalPaymentValue:      m.TotalPaymentValue,
		PaymentInstallments:    m.PaymentInstallments,
		PrimaryPaymentType:     m.PrimaryPaymentType,
		PrimaryCategory:        m.PrimaryCategory,
		PrimaryCategoryEnglish: m.PrimaryCategoryEnglish,
		UniqueCategories:       m.UniqueCategories,
	}
}
