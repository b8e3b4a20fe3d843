package pipeline

import (
	"time"

	"cart-analytics/internal/models"
)

const dateLayout = "2006-01-02"

// Enrichment holds the per-order fields derived from an order and its
// (optional) customer.
type Enrichment struct {
	OrderDate       string
	Year            int
	Month           int
	Quarter         int
	DayOfWeek       int
	DayName         string
	Hour            int
	DayType         string
	IsWeekend       bool
	HoursToApproval *int
	DaysToDelivery  *int

	CustomerUniqueID *string
	ZipCode          *string
	City             *string
	State            *string

	CartStatus  models.CartStatus
	IsAbandoned int
	IsCompleted int
}

// Enrich never fails. A nil customer leaves the location fields null and
// missing timestamps leave their durations null.
func Enrich(o models.Order, c *models.Customer) Enrichment {
	ts := o.PurchaseTimestamp
	weekday := ts.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday

	e := Enrichment{
		OrderDate: ts.Format(dateLayout),
		Year:      ts.Year(),
		Month:     int(ts.Month()),
		Quarter:   (int(ts.Month())-1)/3 + 1,
		DayOfWeek: int(weekday),
		DayName:   weekday.String(),
		Hour:      ts.Hour(),
		DayType:   "Weekday",
		IsWeekend: weekend,
	}
	if weekend {
		e.DayType = "Weekend"
	}

	if o.ApprovedAt != nil {
		h := int(o.ApprovedAt.Sub(ts).Hours())
		e.HoursToApproval = &h
	}
	if o.DeliveredCustomerDate != nil {
		d := int(o.DeliveredCustomerDate.Sub(ts).Hours() / 24)
		e.DaysToDelivery = &d
	}

	if c != nil {
		e.CustomerUniqueID = strPtr(c.CustomerUniqueID)
		e.ZipCode = strPtr(c.ZipCodePrefix)
		e.City = strPtr(c.City)
		e.State = strPtr(c.State)
	}

	e.CartStatus = ClassifyCartStatus(o.Status)
	switch e.CartStatus {
	case models.CartAbandoned:
		e.IsAbandoned = 1
	case models.CartCompleted:
		e.IsCompleted = 1
	}

	return e
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
