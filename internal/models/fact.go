package models

import "time"

type CartStatus string

const (
	CartAbandoned CartStatus = "abandoned"
	CartCompleted CartStatus = "completed"
	CartPending   CartStatus = "pending"
	CartOther     CartStatus = "other"
)

// OrderFact is the denormalized per-order record every report reads.
// Pointer fields are null when no source row contributed to them.
type OrderFact struct {
	OrderID               string      `json:"order_id"`
	CustomerID            string      `json:"customer_id"`
	OrderStatus           OrderStatus `json:"order_status"`
	PurchaseTimestamp     time.Time   `json:"order_purchase_timestamp"`
	ApprovedAt            *time.Time  `json:"order_approved_at"`
	DeliveredCarrierDate  *time.Time  `json:"order_delivered_carrier_date"`
	DeliveredCustomerDate *time.Time  `json:"order_delivered_customer_date"`
	EstimatedDeliveryDate *time.Time  `json:"order_estimated_delivery_date"`

	OrderDate       string `json:"order_date"`
	OrderYear       int    `json:"order_year"`
	OrderMonth      int    `json:"order_month"`
	OrderQuarter    int    `json:"order_quarter"`
	OrderDayOfWeek  int    `json:"order_day_of_week"`
	OrderDayName    string `json:"order_day_name"`
	OrderHour       int    `json:"order_hour"`
	DayType         string `json:"day_type"`
	IsWeekend       bool   `json:"is_weekend"`
	HoursToApproval *int   `json:"hours_to_approval"`
	DaysToDelivery  *int   `json:"days_to_delivery"`

	CustomerUniqueID *string `json:"customer_unique_id"`
	CustomerZipCode  *string `json:"customer_zip_code_prefix"`
	CustomerCity     *string `json:"customer_city"`
	CustomerState    *string `json:"customer_state"`

	CartStatus  CartStatus `json:"cart_status"`
	IsAbandoned int        `json:"is_abandoned"`
	IsCompleted int        `json:"is_completed"`

	CartSize               int     `json:"cart_size"`
	CartValue              float64 `json:"cart_value"`
	AvgItemPrice           float64 `json:"avg_item_price"`
	TotalFreight           float64 `json:"total_freight"`
	UniqueSellers          int     `json:"unique_sellers"`
	TotalPaymentValue      float64 `json:"total_payment_value"`
	PaymentInstallments    int     `json:"payment_installments"`
	PrimaryPaymentType     *string `json:"primary_payment_type"`
	PrimaryCategory        *string `json:"primary_category"`
	PrimaryCategoryEnglish *string `json:"primary_category_english"`
	UniqueCategories       int     `json:"unique_categories"`
}

// Terminal reports whether the order reached a state that counts toward
// abandonment statistics.
func (f *OrderFact) Terminal() bool {
	return f.CartStatus == CartAbandoned || f.CartStatus == CartCompleted
}
