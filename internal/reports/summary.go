package reports

import (
	"time"

	"cart-analytics/internal/models"
)

// Summary covers every fact, not only terminal ones. The abandonment rate
// still uses terminal orders as its denominator.
func (e *Engine) Summary() models.Summary {
	var s models.Summary
	var total, lost, revenue float64
	for i := range e.facts {
		f := &e.facts[i]
		s.TotalOrders++
		total += f.CartValue
		switch f.CartStatus {
		case models.CartAbandoned:
			s.AbandonedOrders++
			lost += f.CartValue
		case models.CartCompleted:
			s.CompletedOrders++
			revenue += f.CartValue
		case models.CartPending:
			s.PendingOrders++
		default:
			s.OtherOrders++
		}
	}
	s.AbandonmentRate = pct(s.AbandonedOrders, s.AbandonedOrders+s.CompletedOrders)
	s.TotalRevenue = round2(revenue)
	s.LostRevenue = round2(lost)
	s.AvgCartValue = mean(total, s.TotalOrders)
	s.RecoveryShare = e.th.RecoveryShare
	s.PotentialRecovery = round2(lost * e.th.RecoveryShare)
	return s
}

var nullableColumns = []struct {
	name    string
	missing func(*models.OrderFact) bool
}{
	{"order_approved_at", func(f *models.OrderFact) bool { return f.ApprovedAt == nil }},
	{"order_delivered_carrier_date", func(f *models.OrderFact) bool { return f.DeliveredCarrierDate == nil }},
	{"order_delivered_customer_date", func(f *models.OrderFact) bool { return f.DeliveredCustomerDate == nil }},
	{"order_estimated_delivery_date", func(f *models.OrderFact) bool { return f.EstimatedDeliveryDate == nil }},
	{"hours_to_approval", func(f *models.OrderFact) bool { return f.HoursToApproval == nil }},
	{"days_to_delivery", func(f *models.OrderFact) bool { return f.DaysToDelivery == nil }},
	{"customer_unique_id", func(f *models.OrderFact) bool { return f.CustomerUniqueID == nil }},
	{"customer_state", func(f *models.OrderFact) bool { return f.CustomerState == nil }},
	{"primary_payment_type", func(f *models.OrderFact) bool { return f.PrimaryPaymentType == nil }},
	{"primary_category", func(f *models.OrderFact) bool { return f.PrimaryCategory == nil }},
	{"primary_category_english", func(f *models.OrderFact) bool { return f.PrimaryCategoryEnglish == nil }},
}

// DataQuality lists only the columns that have gaps.
func (e *Engine) DataQuality() models.DataQuality {
	dq := models.DataQuality{
		Records: len(e.facts),
		Columns: make([]models.ColumnCompletion, 0),
	}
	if len(e.facts) == 0 {
		return dq
	}

	first, last := e.facts[0].PurchaseTimestamp, e.facts[0].PurchaseTimestamp
	missing := make([]int, len(nullableColumns))
	for i := range e.facts {
		f := &e.facts[i]
		if f.PurchaseTimestamp.Before(first) {
			first = f.PurchaseTimestamp
		}
		if f.PurchaseTimestamp.After(last) {
			last = f.PurchaseTimestamp
		}
		for c, col := range nullableColumns {
			if col.missing(f) {
				missing[c]++
			}
		}
	}
	dq.FirstPurchase = timePtr(first)
	dq.LastPurchase = timePtr(last)

	for c, col := range nullableColumns {
		if missing[c] == 0 {
			continue
		}
		dq.Columns = append(dq.Columns, models.ColumnCompletion{
			Column:     col.name,
			Missing:    missing[c],
			MissingPct: pct(missing[c], len(e.facts)),
		})
	}
	return dq
}

func timePtr(t time.Time) *time.Time { return &t }
