package models

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderCreated     OrderStatus = "created"
	OrderApproved    OrderStatus = "approved"
	OrderInvoiced    OrderStatus = "invoiced"
	OrderProcessing  OrderStatus = "processing"
	OrderShipped     OrderStatus = "shipped"
	OrderDelivered   OrderStatus = "delivered"
	OrderUnavailable OrderStatus = "unavailable"
	OrderCanceled    OrderStatus = "canceled"
)

type PaymentType string

const (
	PaymentCreditCard PaymentType = "credit_card"
	PaymentBoleto     PaymentType = "boleto"
	PaymentVoucher    PaymentType = "voucher"
	PaymentDebitCard  PaymentType = "debit_card"
	PaymentNotDefined PaymentType = "not_defined"
)

type Order struct {
	OrderID               string      `json:"order_id" gorm:"column:order_id" validate:"required"`
	CustomerID            string      `json:"customer_id" gorm:"column:customer_id" validate:"required"`
	Status                OrderStatus `json:"order_status" gorm:"column:order_status" validate:"required"`
	PurchaseTimestamp     time.Time   `json:"order_purchase_timestamp" gorm:"column:order_purchase_timestamp" validate:"required"`
	ApprovedAt            *time.Time  `json:"order_approved_at" gorm:"column:order_approved_at"`
	DeliveredCarrierDate  *time.Time  `json:"order_delivered_carrier_date" gorm:"column:order_delivered_carrier_date"`
	DeliveredCustomerDate *time.Time  `json:"order_delivered_customer_date" gorm:"column:order_delivered_customer_date"`
	EstimatedDeliveryDate *time.Time  `json:"order_estimated_delivery_date" gorm:"column:order_estimated_delivery_date"`
}

type Customer struct {
	CustomerID       string `json:"customer_id" gorm:"column:customer_id" validate:"required"`
	CustomerUniqueID string `json:"customer_unique_id" gorm:"column:customer_unique_id" validate:"required"`
	ZipCodePrefix    string `json:"customer_zip_code_prefix" gorm:"column:customer_zip_code_prefix"`
	City             string `json:"customer_city" gorm:"column:customer_city"`
	State            string `json:"customer_state" gorm:"column:customer_state" validate:"omitempty,len=2"`
}

type OrderItem struct {
	OrderID           string     `json:"order_id" gorm:"column:order_id" validate:"required"`
	OrderItemID       int        `json:"order_item_id" gorm:"column:order_item_id" validate:"gte=1"`
	ProductID         string     `json:"product_id" gorm:"column:product_id" validate:"required"`
	SellerID          string     `json:"seller_id" gorm:"column:seller_id" validate:"required"`
	ShippingLimitDate *time.Time `json:"shipping_limit_date" gorm:"column:shipping_limit_date"`
	Price             float64    `json:"price" gorm:"column:price" validate:"gte=0"`
	FreightValue      float64    `json:"freight_value" gorm:"column:freight_value" validate:"gte=0"`
}

type Payment struct {
	OrderID             string      `json:"order_id" gorm:"column:order_id" validate:"required"`
	PaymentSequential   int         `json:"payment_sequential" gorm:"column:payment_sequential" validate:"gte=1"`
	PaymentType         PaymentType `json:"payment_type" gorm:"column:payment_type" validate:"required,oneof=credit_card boleto voucher debit_card not_defined"`
	PaymentInstallments int         `json:"payment_installments" gorm:"column:payment_installments" validate:"gte=1"`
	PaymentValue        float64     `json:"payment_value" gorm:"column:payment_value" validate:"gte=0"`
}

// Product dimensions are carried through the join but no metric reads them.
type Product struct {
	ProductID         string  `json:"product_id" gorm:"column:product_id" validate:"required"`
	CategoryName      string  `json:"product_category_name" gorm:"column:product_category_name"`
	NameLength        int     `json:"product_name_lenght" gorm:"column:product_name_lenght"`
	DescriptionLength int     `json:"product_description_lenght" gorm:"column:product_description_lenght"`
	PhotosQty         int     `json:"product_photos_qty" gorm:"column:product_photos_qty"`
	WeightG           float64 `json:"product_weight_g" gorm:"column:product_weight_g" validate:"gte=0"`
	LengthCm          float64 `json:"product_length_cm" gorm:"column:product_length_cm" validate:"gte=0"`
	HeightCm          float64 `json:"product_height_cm" gorm:"column:product_height_cm" validate:"gte=0"`
	WidthCm           float64 `json:"product_width_cm" gorm:"column:product_width_cm" validate:"gte=0"`
}

type CategoryTranslation struct {
	CategoryName        string `json:"product_category_name" gorm:"column:product_category_name" validate:"required"`
	CategoryNameEnglish string `json:"product_category_name_english" gorm:"column:product_category_name_english" validate:"required"`
}

const (
	EntityOrder       = "order"
	EntityCustomer    = "customer"
	EntityItem        = "order_item"
	EntityPayment     = "payment"
	EntityProduct     = "product"
	EntityTranslation = "category_translation"
)

// Rejection records one raw row that was dropped as invalid input.
type Rejection struct {
	Entity string `json:"entity"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s %s rejected: %s", r.Entity, r.Key, r.Reason)
}

// Dataset is one immutable snapshot of the raw tables handed over by a loader.
// Rejected holds rows the loader could not parse at all.
type Dataset struct {
	Orders       []Order
	Customers    []Customer
	Items        []OrderItem
	Payments     []Payment
	Products     []Product
	Translations []CategoryTranslation
	Rejected     []Rejection
}

func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"orders":       len(d.Orders),
		"customers":    len(d.Customers),
		"items":        len(d.Items),
		"payments":     len(d.Payments),
		"products":     len(d.Products),
		"translations": len(d.Translations),
	}
}
