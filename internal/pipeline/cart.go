package pipeline

import "cart-analytics/internal/models"

// Catalog resolves product ids to raw categories and raw categories to their
// English names.
type Catalog struct {
	categories   map[string]string
	translations map[string]string
}

func NewCatalog(products []models.Product, translations []models.CategoryTranslation) *Catalog {
	c := &Catalog{
		categories:   make(map[string]string, len(products)),
		translations: make(map[string]string, len(translations)),
	}
	for _, p := range products {
		if _, seen := c.categories[p.ProductID]; !seen {
			c.categories[p.ProductID] = p.CategoryName
		}
	}
	for _, t := range translations {
		if _, seen := c.translations[t.CategoryName]; !seen {
			c.translations[t.CategoryName] = t.CategoryNameEnglish
		}
	}
	return c
}

// Category returns the raw category of a product. found is false when the
// product is unknown; an empty category on a known product is returned as is.
func (c *Catalog) Category(productID string) (category string, found bool) {
	category, found = c.categories[productID]
	return category, found
}

func (c *Catalog) English(category string) (string, bool) {
	en, ok := c.translations[category]
	return en, ok
}

type CartMetrics struct {
	CartSize               int
	CartValue              float64
	AvgItemPrice           float64
	TotalFreight           float64
	UniqueSellers          int
	TotalPaymentValue      float64
	PaymentInstallments    int
	PrimaryPaymentType     *string
	PrimaryCategory        *string
	PrimaryCategoryEnglish *string
	UniqueCategories       int

	// referential gaps observed while aggregating
	MissingProducts      int
	UntranslatedCategory bool
}

type categorySum struct {
	name  string
	total float64
}

// AggregateCart folds one order's items and payments into cart metrics.
// Ties on payment value and on category price are won by the first row in
// input order.
func AggregateCart(items []models.OrderItem, payments []models.Payment, catalog *Catalog) CartMetrics {
	m := CartMetrics{
		CartSize:            len(items),
		PaymentInstallments: 1,
	}

	sellers := make(map[string]struct{}, len(items))
	var cats []categorySum
	catIndex := make(map[string]int)

	for _, it := range items {
		m.CartValue += it.Price
		m.TotalFreight += it.FreightValue
		sellers[it.SellerID] = struct{}{}

		category, found := catalog.Category(it.ProductID)
		if !found {
			m.MissingProducts++
			continue
		}
		if category == "" {
			continue
		}
		if i, ok := catIndex[category]; ok {
			cats[i].total += it.Price
		} else {
			catIndex[category] = len(cats)
			cats = append(cats, categorySum{name: category, total: it.Price})
		}
	}

	m.UniqueSellers = len(sellers)
	m.UniqueCategories = len(cats)
	if m.CartSize > 0 {
		m.AvgItemPrice = m.CartValue / float64(m.CartSize)
	}

	if len(cats) > 0 {
		best := cats[0]
		for _, c := range cats[1:] {
			if c.total > best.total {
				best = c
			}
		}
		name := best.name
		m.PrimaryCategory = &name
		if en, ok := catalog.English(name); ok {
			m.PrimaryCategoryEnglish = &en
		} else {
			m.UntranslatedCategory = true
		}
	}

	if len(payments) > 0 {
		maxInstallments := 0
		primary := payments[0]
		for i, p := range payments {
			m.TotalPaymentValue += p.PaymentValue
			if p.PaymentInstallments > maxInstallments {
				maxInstallments = p.PaymentInstallments
			}
			if i > 0 && p.PaymentValue > primary.PaymentValue {
				primary = p
			}
		}
		if maxInstallments > 0 {
			m.PaymentInstallments = maxInstallments
		}
		pt := string(primary.PaymentType)
		m.PrimaryPaymentType = &pt
	}

	return m
}
