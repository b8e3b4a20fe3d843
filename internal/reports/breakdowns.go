package reports

import (
	"fmt"
	"slices"
	"time"

	"cart-analytics/internal/models"
)

func (e *Engine) Categories() []models.CategoryRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return orUnknown(f.PrimaryCategoryEnglish), true
	})

	rows := make([]models.CategoryRow, 0, len(g.keys))
	for _, k := range g.keys {
		a := g.accs[k]
		if a.orders < e.th.CategoryMinSupport {
			continue
		}
		rows = append(rows, models.CategoryRow{
			Category:        k,
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
			AvgCartSize:     mean(a.size, a.orders),
			AbandonedValue:  round2(a.abandonedValue),
		})
	}
	slices.SortFunc(rows, func(a, b models.CategoryRow) int {
		return byRate(a.AbandonmentRate, b.AbandonmentRate, a.TotalOrders, b.TotalOrders, a.Category, b.Category)
	})
	return rows
}

func (e *Engine) Payments() []models.PaymentRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return orUnknown(f.PrimaryPaymentType), true
	})

	rows := make([]models.PaymentRow, 0, len(g.keys))
	for _, k := range g.keys {
		a := g.accs[k]
		rows = append(rows, models.PaymentRow{
			PaymentType:     k,
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
			AvgInstallments: mean(a.installments, a.orders),
		})
	}
	slices.SortFunc(rows, func(a, b models.PaymentRow) int {
		return byRate(a.AbandonmentRate, b.AbandonmentRate, a.TotalOrders, b.TotalOrders, a.PaymentType, b.PaymentType)
	})
	return rows
}

func (e *Engine) Installments() []models.BucketRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return InstallmentBuckets.Label(float64(f.PaymentInstallments)), true
	})
	return e.bucketRows(InstallmentBuckets.Labels(), g)
}

func (e *Engine) CartSizes() []models.BucketRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		if f.CartSize <= 0 {
			return "", false
		}
		return CartSizeBuckets.Label(float64(f.CartSize)), true
	})
	return e.bucketRows(CartSizeBuckets.Labels(), g)
}

func (e *Engine) CartValues() []models.BucketRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		if f.CartValue <= 0 {
			return "", false
		}
		return CartValueBuckets.Label(f.CartValue), true
	})
	return e.bucketRows(CartValueBuckets.Labels(), g)
}

func (e *Engine) DayTypes() []models.BucketRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return f.DayType, true
	})
	return e.bucketRows([]string{"Weekday", "Weekend"}, g)
}

func (e *Engine) HourBuckets() []models.BucketRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return DayPart(f.OrderHour), true
	})
	return e.bucketRows(dayPartLabels(), g)
}

func (e *Engine) Monthly() []models.PeriodRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return fmt.Sprintf("%04d-%02d", f.OrderYear, f.OrderMonth), true
	})

	rows := make([]models.PeriodRow, 0, len(g.keys))
	for _, k := range sortedCopy(g.keys) {
		a := g.accs[k]
		rows = append(rows, models.PeriodRow{
			Period:          k,
			Year:            a.first.OrderYear,
			Month:           a.first.OrderMonth,
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
		})
	}
	return rows
}

func (e *Engine) Quarterly() []models.PeriodRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return fmt.Sprintf("%04d-Q%d", f.OrderYear, f.OrderQuarter), true
	})

	rows := make([]models.PeriodRow, 0, len(g.keys))
	for _, k := range sortedCopy(g.keys) {
		a := g.accs[k]
		rows = append(rows, models.PeriodRow{
			Period:          k,
			Year:            a.first.OrderYear,
			Quarter:         a.first.OrderQuarter,
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
		})
	}
	return rows
}

// Weekdays lists Monday first.
func (e *Engine) Weekdays() []models.WeekdayRow {
	byDay := make(map[int]*acc, 7)
	for _, f := range e.terminal {
		a := byDay[f.OrderDayOfWeek]
		if a == nil {
			a = &acc{}
			byDay[f.OrderDayOfWeek] = a
		}
		a.add(f)
	}

	rows := make([]models.WeekdayRow, 0, len(byDay))
	for i := 0; i < 7; i++ {
		dow := (i + 1) % 7
		a, ok := byDay[dow]
		if !ok {
			continue
		}
		rows = append(rows, models.WeekdayRow{
			DayOfWeek:       dow,
			DayName:         time.Weekday(dow).String(),
			TotalOrders:     a.orders,
			AbandonedOrders: a.abandoned,
			AbandonmentRate: a.rate(),
			AvgCartValue:    mean(a.value, a.orders),
		})
	}
	return rows
}

func (e *Engine) States() []models.GeoRow {
	return e.states(e.th.StateMinSupport)
}

func (e *Engine) states(minSupport int) []models.GeoRow {
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return orUnknown(f.CustomerState), true
	})

	rows := make([]models.GeoRow, 0, len(g.keys))
	for _, k := range g.keys {
		a := g.accs[k]
		if a.orders < minSupport {
			continue
		}
		rows = append(rows, geoRow("", k, a))
	}
	slices.SortFunc(rows, func(a, b models.GeoRow) int {
		return byRate(a.AbandonmentRate, b.AbandonmentRate, a.TotalOrders, b.TotalOrders, a.State, b.State)
	})
	return rows
}

func (e *Engine) Cities() []models.GeoRow {
	type cityKey struct{ city, state string }
	keys := make(map[string]cityKey)
	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		ck := cityKey{orUnknown(f.CustomerCity), orUnknown(f.CustomerState)}
		k := ck.city + "|" + ck.state
		keys[k] = ck
		return k, true
	})

	rows := make([]models.GeoRow, 0)
	for _, k := range g.keys {
		a := g.accs[k]
		if a.orders < e.th.CityMinSupport {
			continue
		}
		rows = append(rows, geoRow(keys[k].city, keys[k].state, a))
	}
	slices.SortFunc(rows, func(a, b models.GeoRow) int {
		return byRate(a.AbandonmentRate, b.AbandonmentRate, a.TotalOrders, b.TotalOrders, a.City+"|"+a.State, b.City+"|"+b.State)
	})
	return rows
}

func geoRow(city, state string, a *acc) models.GeoRow {
	return models.GeoRow{
		City:            city,
		State:           state,
		TotalOrders:     a.orders,
		AbandonedOrders: a.abandoned,
		AbandonmentRate: a.rate(),
		AvgCartValue:    mean(a.value, a.orders),
		AbandonedValue:  round2(a.abandonedValue),
	}
}

// StateRecovery estimates the abandoned value recovered if each state's
// abandonment rate dropped to the global rate:
// abandoned_value * (1 - global_rate/state_rate). States whose own rate is
// zero have no defined ratio and are skipped. States already below the
// global rate show a negative potential.
func (e *Engine) StateRecovery() []models.RecoveryRow {
	var total, abandoned int
	for _, f := range e.terminal {
		total++
		abandoned += f.IsAbandoned
	}
	if total == 0 {
		return []models.RecoveryRow{}
	}
	global := float64(abandoned) / float64(total)

	g := groupBy(e.terminal, func(f *models.OrderFact) (string, bool) {
		return orUnknown(f.CustomerState), true
	})

	rows := make([]models.RecoveryRow, 0, len(g.keys))
	for _, k := range g.keys {
		a := g.accs[k]
		if a.orders < e.th.StateRecoveryMinSupport || a.abandoned == 0 {
			continue
		}
		stateRate := float64(a.abandoned) / float64(a.orders)
		rows = append(rows, models.RecoveryRow{
			State:             k,
			TotalOrders:       a.orders,
			AbandonedOrders:   a.abandoned,
			AbandonmentRate:   a.rate(),
			GlobalRate:        pct(abandoned, total),
			AbandonedValue:    round2(a.abandonedValue),
			PotentialRecovery: round2(a.abandonedValue * (1 - global/stateRate)),
		})
	}
	slices.SortFunc(rows, func(a, b models.RecoveryRow) int {
		if c := sortDesc(a.PotentialRecovery, b.PotentialRecovery); c != 0 {
			return c
		}
		return byRate(a.AbandonmentRate, b.AbandonmentRate, a.TotalOrders, b.TotalOrders, a.State, b.State)
	})
	return rows
}
