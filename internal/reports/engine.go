package reports

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"cart-analytics/internal/models"
)

const unknownKey = "Unknown"

var ErrUnknownReport = errors.New("unknown report")

type Thresholds struct {
	CategoryMinSupport      int
	StateMinSupport         int
	StateRecoveryMinSupport int
	CityMinSupport          int
	PriorityMinSupport      int
	RecoveryShare           float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CategoryMinSupport:      50,
		StateMinSupport:         100,
		StateRecoveryMinSupport: 200,
		CityMinSupport:          50,
		PriorityMinSupport:      50,
		RecoveryShare:           0.10,
	}
}

// Engine runs the named group-by computations over a fully assembled,
// read-only fact collection. Unless a computation says otherwise only
// terminal orders (abandoned or completed) are counted.
type Engine struct {
	facts    []models.OrderFact
	terminal []*models.OrderFact
	th       Thresholds
}

func NewEngine(facts []models.OrderFact, th Thresholds) *Engine {
	e := &Engine{facts: facts, th: th}
	for i := range facts {
		if facts[i].Terminal() {
			e.terminal = append(e.terminal, &facts[i])
		}
	}
	return e
}

func (e *Engine) Thresholds() Thresholds {
	return e.th
}

var registry = []struct {
	name string
	run  func(*Engine) any
}{
	{"summary", func(e *Engine) any { return e.Summary() }},
	{"data_quality", func(e *Engine) any { return e.DataQuality() }},
	{"categories", func(e *Engine) any { return e.Categories() }},
	{"payments", func(e *Engine) any { return e.Payments() }},
	{"installments", func(e *Engine) any { return e.Installments() }},
	{"cart_sizes", func(e *Engine) any { return e.CartSizes() }},
	{"cart_values", func(e *Engine) any { return e.CartValues() }},
	{"monthly", func(e *Engine) any { return e.Monthly() }},
	{"quarterly", func(e *Engine) any { return e.Quarterly() }},
	{"day_types", func(e *Engine) any { return e.DayTypes() }},
	{"hour_buckets", func(e *Engine) any { return e.HourBuckets() }},
	{"weekdays", func(e *Engine) any { return e.Weekdays() }},
	{"states", func(e *Engine) any { return e.States() }},
	{"cities", func(e *Engine) any { return e.Cities() }},
	{"state_recovery", func(e *Engine) any { return e.StateRecovery() }},
	{"cohorts", func(e *Engine) any { return e.Cohorts() }},
	{"high_value_at_risk", func(e *Engine) any { return e.HighValueAtRisk() }},
	{"friction_factors", func(e *Engine) any { return e.FrictionFactors() }},
	{"priorities", func(e *Engine) any { return e.Priorities() }},
	{"funnel", func(e *Engine) any { return e.Funnel() }},
}

func Names() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.name
	}
	return names
}

func (e *Engine) Run(name string) (any, error) {
	for _, r := range registry {
		if r.name == name {
			return r.run(e), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReport, name)
}

func (e *Engine) RunAll() map[string]any {
	out := make(map[string]any, len(registry))
	for _, r := range registry {
		out[r.name] = r.run(e)
	}
	return out
}

type acc struct {
	orders         int
	abandoned      int
	value          float64
	size           float64
	installments   float64
	abandonedValue float64

	// first is the fact that opened the group. Attributes the group key is
	// derived from (year, month, quarter) are read from it.
	first *models.OrderFact
}

func (a *acc) add(f *models.OrderFact) {
	a.orders++
	a.abandoned += f.IsAbandoned
	a.value += f.CartValue
	a.size += float64(f.CartSize)
	a.installments += float64(f.PaymentInstallments)
	if f.IsAbandoned == 1 {
		a.abandonedValue += f.CartValue
	}
}

func (a *acc) rate() float64 { return pct(a.abandoned, a.orders) }

// grouped keeps first-seen key order so ties sort deterministically.
type grouped struct {
	keys []string
	accs map[string]*acc
}

func groupBy(facts []*models.OrderFact, key func(*models.OrderFact) (string, bool)) grouped {
	g := grouped{accs: make(map[string]*acc)}
	for _, f := range facts {
		k, ok := key(f)
		if !ok {
			continue
		}
		a := g.accs[k]
		if a == nil {
			a = &acc{first: f}
			g.accs[k] = a
			g.keys = append(g.keys, k)
		}
		a.add(f)
	}
	return g
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return unknownKey
	}
	return *s
}

// byRate orders rate breakdowns: rate desc, then volume desc, then key asc.
func byRate(aRate, bRate float64, aOrders, bOrders int, aKey, bKey string) int {
	switch {
	case aRate > bRate:
		return -1
	case aRate < bRate:
		return 1
	case aOrders > bOrders:
		return -1
	case aOrders < bOrders:
		return 1
	}
	return strings.Compare(aKey, bKey)
}

func (e *Engine) bucketRows(labels []string, g grouped) []models.BucketRow {
	rows := make([]models.BucketRow, 0, len(labels))
	for _, l := range labels {
		a, ok := g.accs[l]
		if !ok {
			continue
		}
		rows = append(rows, models.BucketRow{
			Bucket:          l,
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
		})
	}
	return rows
}

func sortDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func sortedCopy(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return out
}
