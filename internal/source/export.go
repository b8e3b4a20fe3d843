package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"cart-analytics/internal/models"
)

// FactColumns is the header written by WriteFactsCSV.
var FactColumns = []string{
	"order_id", "customer_id", "order_status", "order_purchase_timestamp",
	"order_approved_at", "order_delivered_carrier_date",
	"order_delivered_customer_date", "order_estimated_delivery_date",
	"order_date", "order_year", "order_month", "order_quarter",
	"order_day_of_week", "order_day_name", "order_hour", "day_type", "is_weekend",
	"hours_to_approval", "days_to_delivery",
	"customer_unique_id", "customer_zip_code_prefix", "customer_city", "customer_state",
	"cart_status", "is_abandoned", "is_completed",
	"cart_size", "cart_value", "avg_item_price", "total_freight", "unique_sellers",
	"total_payment_value", "payment_installments", "primary_payment_type",
	"primary_category", "primary_category_english", "unique_categories",
}

// WriteFactsCSV writes one row per fact. Null fields are written as empty
// cells.
func WriteFactsCSV(w io.Writer, facts []models.OrderFact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FactColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, len(FactColumns))
	for i := range facts {
		f := &facts[i]
		rec = rec[:0]
		rec = append(rec,
			f.OrderID, f.CustomerID, string(f.OrderStatus), formatTime(&f.PurchaseTimestamp),
			formatTime(f.ApprovedAt), formatTime(f.DeliveredCarrierDate),
			formatTime(f.DeliveredCustomerDate), formatTime(f.EstimatedDeliveryDate),
			f.OrderDate, itoa(f.OrderYear), itoa(f.OrderMonth), itoa(f.OrderQuarter),
			itoa(f.OrderDayOfWeek), f.OrderDayName, itoa(f.OrderHour), f.DayType, strconv.FormatBool(f.IsWeekend),
			optInt(f.HoursToApproval), optInt(f.DaysToDelivery),
			optStr(f.CustomerUniqueID), optStr(f.CustomerZipCode), optStr(f.CustomerCity), optStr(f.CustomerState),
			string(f.CartStatus), itoa(f.IsAbandoned), itoa(f.IsCompleted),
			itoa(f.CartSize), ftoa(f.CartValue), ftoa(f.AvgItemPrice), ftoa(f.TotalFreight), itoa(f.UniqueSellers),
			ftoa(f.TotalPaymentValue), itoa(f.PaymentInstallments), optStr(f.PrimaryPaymentType),
			optStr(f.PrimaryCategory), optStr(f.PrimaryCategoryEnglish), itoa(f.UniqueCategories),
		)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write fact %s: %w", f.OrderID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(TimestampLayout)
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func optStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
