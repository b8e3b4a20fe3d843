package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"cart-analytics/internal/models"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Order(o models.Order) error {
	if err := v.check(o); err != nil {
		return err
	}
	if o.PurchaseTimestamp.IsZero() {
		return fmt.Errorf("missing purchase timestamp")
	}
	later := []struct {
		name string
		ts   *time.Time
	}{
		{"order_approved_at", o.ApprovedAt},
		{"order_delivered_carrier_date", o.DeliveredCarrierDate},
		{"order_delivered_customer_date", o.DeliveredCustomerDate},
	}
	for _, l := range later {
		if l.ts != nil && l.ts.Before(o.PurchaseTimestamp) {
			return fmt.Errorf("%s precedes purchase timestamp", l.name)
		}
	}
	return nil
}

// Clean returns a copy of ds holding only valid rows plus one rejection per
// dropped row, after any rejections the loader already recorded. For
// duplicated keys the first row wins.
func (v *Validator) Clean(ds *models.Dataset) (*models.Dataset, []models.Rejection) {
	out := &models.Dataset{}
	rejected := slices.Clone(ds.Rejected)

	reject := func(entity, key string, err error) {
		rejected = append(rejected, models.Rejection{Entity: entity, Key: key, Reason: err.Error()})
	}

	seenOrders := make(map[string]struct{}, len(ds.Orders))
	for _, o := range ds.Orders {
		if err := v.Order(o); err != nil {
			reject(models.EntityOrder, o.OrderID, err)
			continue
		}
		if _, dup := seenOrders[o.OrderID]; dup {
			reject(models.EntityOrder, o.OrderID, errDuplicate)
			continue
		}
		seenOrders[o.OrderID] = struct{}{}
		out.Orders = append(out.Orders, o)
	}

	seenCustomers := make(map[string]struct{}, len(ds.Customers))
	for _, c := range ds.Customers {
		if err := v.check(c); err != nil {
			reject(models.EntityCustomer, c.CustomerID, err)
			continue
		}
		if _, dup := seenCustomers[c.CustomerID]; dup {
			reject(models.EntityCustomer, c.CustomerID, errDuplicate)
			continue
		}
		seenCustomers[c.CustomerID] = struct{}{}
		out.Customers = append(out.Customers, c)
	}

	seenItems := make(map[string]struct{}, len(ds.Items))
	for _, it := range ds.Items {
		key := compositeKey(it.OrderID, it.OrderItemID)
		if err := v.check(it); err != nil {
			reject(models.EntityItem, key, err)
			continue
		}
		if _, dup := seenItems[key]; dup {
			reject(models.EntityItem, key, errDuplicate)
			continue
		}
		seenItems[key] = struct{}{}
		out.Items = append(out.Items, it)
	}

	seenPayments := make(map[string]struct{}, len(ds.Payments))
	for _, p := range ds.Payments {
		key := compositeKey(p.OrderID, p.PaymentSequential)
		if err := v.check(p); err != nil {
			reject(models.EntityPayment, key, err)
			continue
		}
		if _, dup := seenPayments[key]; dup {
			reject(models.EntityPayment, key, errDuplicate)
			continue
		}
		seenPayments[key] = struct{}{}
		out.Payments = append(out.Payments, p)
	}

	seenProducts := make(map[string]struct{}, len(ds.Products))
	for _, p := range ds.Products {
		if err := v.check(p); err != nil {
			reject(models.EntityProduct, p.ProductID, err)
			continue
		}
		if _, dup := seenProducts[p.ProductID]; dup {
			reject(models.EntityProduct, p.ProductID, errDuplicate)
			continue
		}
		seenProducts[p.ProductID] = struct{}{}
		out.Products = append(out.Products, p)
	}

	seenTranslations := make(map[string]struct{}, len(ds.Translations))
	for _, t := range ds.Translations {
		if err := v.check(t); err != nil {
			reject(models.EntityTranslation, t.CategoryName, err)
			continue
		}
		if _, dup := seenTranslations[t.CategoryName]; dup {
			reject(models.EntityTranslation, t.CategoryName, errDuplicate)
			continue
		}
		seenTranslations[t.CategoryName] = struct{}{}
		out.Translations = append(out.Translations, t)
	}

	return out, rejected
}

var errDuplicate = errors.New("duplicate key")

func (v *Validator) check(record any) error {
	err := v.validate.Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func compositeKey(orderID string, seq int) string {
	return orderID + "#" + strconv.Itoa(seq)
}
