package reports

import (
	"slices"
	"time"

	"cart-analytics/internal/models"
)

type customerHistory struct {
	orders    int
	abandoned int
	first     time.Time
	last      time.Time
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Cohorts buckets customers by how many terminal orders they placed. The
// abandonment rate is the mean of each customer's own rate, not a pooled
// ratio.
func (e *Engine) Cohorts() []models.CohortRow {
	customers := make(map[string]*customerHistory)
	for _, f := range e.terminal {
		if f.CustomerUniqueID == nil {
			continue
		}
		day := dateOnly(f.PurchaseTimestamp)
		h := customers[*f.CustomerUniqueID]
		if h == nil {
			h = &customerHistory{first: day, last: day}
			customers[*f.CustomerUniqueID] = h
		}
		h.orders++
		h.abandoned += f.IsAbandoned
		if day.Before(h.first) {
			h.first = day
		}
		if day.After(h.last) {
			h.last = day
		}
	}

	type cohort struct {
		customers int
		orders    int
		rateSum   float64
		daysSum   float64
	}
	cohorts := make(map[string]*cohort)
	for _, h := range customers {
		label := CohortBuckets.Label(float64(h.orders))
		c := cohorts[label]
		if c == nil {
			c = &cohort{}
			cohorts[label] = c
		}
		c.customers++
		c.orders += h.orders
		c.rateSum += float64(h.abandoned) / float64(h.orders)
		c.daysSum += h.last.Sub(h.first).Hours() / 24
	}

	rows := make([]models.CohortRow, 0, len(cohorts))
	for _, label := range CohortBuckets.Labels() {
		c, ok := cohorts[label]
		if !ok {
			continue
		}
		rows = append(rows, models.CohortRow{
			Segment:            label,
			Customers:          c.customers,
			TotalOrders:        c.orders,
			AvgAbandonmentRate: ratioPct(c.rateSum / float64(c.customers)),
			AvgLifespanDays:    mean(c.daysSum, c.customers),
		})
	}
	return rows
}

const (
	segmentTop    = "Top 10%"
	segmentBottom = "Bottom 90%"
)

// HighValueAtRisk splits abandoned carts at the 90th percentile of their
// value. Segments with no orders are omitted.
func (e *Engine) HighValueAtRisk() []models.ValueSegmentRow {
	var abandoned []*models.OrderFact
	values := make([]float64, 0)
	for _, f := range e.terminal {
		if f.IsAbandoned == 1 && f.CartValue > 0 {
			abandoned = append(abandoned, f)
			values = append(values, f.CartValue)
		}
	}
	if len(abandoned) == 0 {
		return []models.ValueSegmentRow{}
	}
	p90 := percentileCont(values, 0.9)

	type segment struct {
		acc
		categories map[string]struct{}
	}
	segs := map[string]*segment{
		segmentTop:    {categories: map[string]struct{}{}},
		segmentBottom: {categories: map[string]struct{}{}},
	}
	for _, f := range abandoned {
		s := segs[segmentBottom]
		if f.CartValue >= p90 {
			s = segs[segmentTop]
		}
		s.add(f)
		if f.PrimaryCategory != nil {
			s.categories[*f.PrimaryCategory] = struct{}{}
		}
	}

	rows := make([]models.ValueSegmentRow, 0, 2)
	for _, label := range []string{segmentTop, segmentBottom} {
		s := segs[label]
		if s.orders == 0 {
			continue
		}
		rows = append(rows, models.ValueSegmentRow{
			Segment:            label,
			Threshold:          round2(p90),
			Orders:             s.orders,
			TotalValue:         round2(s.value),
			AvgCartValue:       mean(s.value, s.orders),
			AvgCartSize:        mean(s.size, s.orders),
			DistinctCategories: len(s.categories),
		})
	}
	return rows
}

var frictionFactors = []struct {
	name string
	hit  func(*models.OrderFact) bool
}{
	{"Multiple sellers", func(f *models.OrderFact) bool { return f.UniqueSellers > 1 }},
	{"Multiple categories", func(f *models.OrderFact) bool { return f.UniqueCategories > 1 }},
	{"High installments (7+)", func(f *models.OrderFact) bool { return f.PaymentInstallments >= 7 }},
	{"Large cart (6+ items)", func(f *models.OrderFact) bool { return f.CartSize >= 6 }},
}

// FrictionFactors evaluates each predicate independently; an order may count
// toward several rows.
func (e *Engine) FrictionFactors() []models.FrictionRow {
	rows := make([]models.FrictionRow, 0, len(frictionFactors))
	for _, ff := range frictionFactors {
		var a acc
		for _, f := range e.terminal {
			if ff.hit(f) {
				a.add(f)
			}
		}
		rows = append(rows, models.FrictionRow{
			Factor:          ff.name,
			AffectedOrders:  a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
		})
	}
	return rows
}

// Score weighs rate, value at risk and volume. Rate and value are the
// rounded figures shown to users.
func Score(ratePct, abandonedValue float64, orders int) float64 {
	return round2(0.4*ratePct + 0.3*(abandonedValue/1000) + 0.3*(float64(orders)/100))
}

// Classify labels a category. HIGH needs both conditions, MEDIUM either.
func Classify(ratePct, abandonedValue float64) models.Priority {
	switch {
	case ratePct > 25 && abandonedValue > 5000:
		return models.PriorityHigh
	case ratePct > 20 || abandonedValue > 3000:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func (e *Engine) Priorities() []models.PriorityRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return orUnknown(f.PrimaryCategoryEnglish), true
	})

	rows := make([]models.PriorityRow, 0, len(g.keys))
	for _, k := range g.keys {
		a := g.accs[k]
		if a.orders < e.th.PriorityMinSupport {
			continue
		}
		rate := a.rate()
		value := round2(a.abandonedValue)
		rows = append(rows, models.PriorityRow{
			Category:        k,
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: rate,
			AbandonedValue:  value,
			Score:           Score(rate, value, a.orders),
			Priority:        Classify(rate, value),
		})
	}
	slices.SortFunc(rows, func(a, b models.PriorityRow) int {
		if c := sortDesc(a.Score, b.Score); c != 0 {
			return c
		}
		return byRate(a.AbandonmentRate, b.AbandonmentRate, a.TotalOrders, b.TotalOrders, a.Category, b.Category)
	})
	return rows
}

var funnelStages = []struct {
	name string
	in   func(*models.OrderFact) bool
}{
	{"Cart Created", func(f *models.OrderFact) bool {
		return f.CartStatus == models.CartAbandoned || f.CartStatus == models.CartCompleted || f.CartStatus == models.CartPending
	}},
	{"Payment Attempted", func(f *models.OrderFact) bool {
		return f.TotalPaymentValue > 0
	}},
	{"Order Approved", func(f *models.OrderFact) bool {
		return (f.CartStatus == models.CartCompleted || f.CartStatus == models.CartPending) && f.ApprovedAt != nil
	}},
	{"Order Completed", func(f *models.OrderFact) bool {
		return f.CartStatus == models.CartCompleted
	}},
}

// Funnel applies each stage on top of the previous ones so counts never
// increase from one step to the next. Stages are therefore narrower than
// their own predicates: "Order Completed" counts completed orders that also
// carry a payment and an approval time, not every completed order.
func (e *Engine) Funnel() []models.FunnelRow {
	counts := make([]int, len(funnelStages))
	for i := range e.facts {
		f := &e.facts[i]
		for s, stage := range funnelStages {
			if !stage.in(f) {
				break
			}
			counts[s]++
		}
	}

	rows := make([]models.FunnelRow, len(funnelStages))
	for s, stage := range funnelStages {
		rows[s] = models.FunnelRow{
			Step:           s + 1,
			Stage:          stage.name,
			Orders:         counts[s],
			ConversionRate: pct(counts[s], counts[0]),
		}
	}
	return rows
}
