package models

import "time"

// Rates are percentages rounded to two decimals. Money fields are rounded
// to two decimals.

type Summary struct {
	TotalOrders       int     `json:"total_orders"`
	AbandonedOrders   int     `json:"abandoned_orders"`
	CompletedOrders   int     `json:"completed_orders"`
	PendingOrders     int     `json:"pending_orders"`
	OtherOrders       int     `json:"other_orders"`
	AbandonmentRate   float64 `json:"abandonment_rate"`
	TotalRevenue      float64 `json:"total_revenue"`
	LostRevenue       float64 `json:"lost_revenue"`
	AvgCartValue      float64 `json:"avg_cart_value"`
	RecoveryShare     float64 `json:"recovery_share"`
	PotentialRecovery float64 `json:"potential_recovery"`
}

type DataQuality struct {
	Records       int                `json:"records"`
	FirstPurchase *time.Time         `json:"first_purchase"`
	LastPurchase  *time.Time         `json:"last_purchase"`
	Columns       []ColumnCompletion `json:"columns"`
}

type ColumnCompletion struct {
	Column     string  `json:"column"`
	Missing    int     `json:"missing"`
	MissingPct float64 `json:"missing_pct"`
}

type CategoryRow struct {
	Category        string  `json:"category"`
	TotalOrders     int     `json:"total_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
	AvgCartSize     float64 `json:"avg_cart_size"`
	AbandonedValue  float64 `json:"abandoned_value"`
}

type PaymentRow struct {
	PaymentType     string  `json:"payment_type"`
	TotalOrders     int     `json:"total_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
	AvgInstallments float64 `json:"avg_installments"`
}

// BucketRow serves every fixed-bin and small-label breakdown (installments,
// cart size, cart value, day type, hour of day).
type BucketRow struct {
	Bucket          string  `json:"bucket"`
	TotalOrders     int     `json:"total_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
}

type PeriodRow struct {
	Period          string  `json:"period"`
	Year            int     `json:"year"`
	Month           int     `json:"month,omitempty"`
	Quarter         int     `json:"quarter,omitempty"`
	TotalOrders     int     `json:"total_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
}

type WeekdayRow struct {
	DayOfWeek       int     `json:"day_of_week"`
	DayName         string  `json:"day_name"`
	TotalOrders     int     `json:"total_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
}

type GeoRow struct {
	City            string  `json:"city,omitempty"`
	State           string  `json:"state"`
	TotalOrders     int     `json:"total_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
	AbandonedValue  float64 `json:"abandoned_value"`
}

type RecoveryRow struct {
	State             string  `json:"state"`
	TotalOrders       int     `json:"total_orders"`
	AbandonedOrders   int     `json:"abandoned_orders"`
	AbandonmentRate   float64 `json:"abandonment_rate"`
	GlobalRate        float64 `json:"global_rate"`
	AbandonedValue    float64 `json:"abandoned_value"`
	PotentialRecovery float64 `json:"potential_recovery"`
}

type CohortRow struct {
	Segment            string  `json:"segment"`
	Customers          int     `json:"customers"`
	TotalOrders        int     `json:"total_orders"`
	AvgAbandonmentRate float64 `json:"avg_abandonment_rate"`
	AvgLifespanDays    float64 `json:"avg_lifespan_days"`
}

type ValueSegmentRow struct {
	Segment            string  `json:"segment"`
	Threshold          float64 `json:"p90_threshold"`
	Orders             int     `json:"orders"`
	TotalValue         float64 `json:"total_value"`
	AvgCartValue       float64 `json:"avg_cart_value"`
	AvgCartSize        float64 `json:"avg_cart_size"`
	DistinctCategories int     `json:"distinct_categories"`
}

type FrictionRow struct {
	Factor          string  `json:"factor"`
	AffectedOrders  int     `json:"affected_orders"`
	AbandonedOrders int     `json:"abandoned_orders"`
	AbandonmentRate float64 `json:"abandonment_rate"`
	AvgCartValue    float64 `json:"avg_cart_value"`
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type PriorityRow struct {
	Category        string   `json:"category"`
	TotalOrders     int      `json:"total_orders"`
	AbandonedOrders int      `json:"abandoned_orders"`
	AbandonmentRate float64  `json:"abandonment_rate"`
	AbandonedValue  float64  `json:"abandoned_value"`
	Score           float64  `json:"priority_score"`
	Priority        Priority `json:"priority"`
}

type FunnelRow struct {
	Step           int     `json:"step"`
	Stage          string  `json:"stage"`
	Orders         int     `json:"orders"`
	ConversionRate float64 `json:"conversion_rate"`
}
