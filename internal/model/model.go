// Package model содержит доменные сущности торговой площадки.
package model

import "time"

// OfferStatus описывает статус объявления в каталоге.
type OfferStatus string

const (
	OfferStatusActive   OfferStatus = "active"
	OfferStatusInactive OfferStatus = "inactive"
)

// Offer представляет одно объявление на площадке.
// Цена хранится в условных единицах (PLN в исходных данных).
type Offer struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Location    string      `json:"location"`
	Image       string      `json:"image,omitempty"`
	Date        time.Time   `json:"date"`
	Status      OfferStatus `json:"status"`
	Views       int         `json:"views"`
	Discount    int         `json:"discount,omitempty"`
	Category    string      `json:"category,omitempty"`
	Seller      string      `json:"seller,omitempty"`
}

// OfferDraft содержит поля, задаваемые пользователем при создании объявления.
// Цена приходит строкой из формы и валидируется перед сохранением.
type OfferDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Location    string `json:"location"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`
}

// OfferPatch описывает частичное обновление объявления.
// Нулевой указатель означает, что поле не меняется.
type OfferPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	Location    *string `json:"location,omitempty"`
	Image       *string `json:"image,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// User представляет зарегистрированного пользователя площадки.
type User struct {
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"passwordHash"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	DateCreated  time.Time `json:"dateCreated"`
}

// PaymentMethod описывает способ оплаты при оформлении покупки.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// DeliveryOrder содержит адрес доставки и способ оплаты.
// Существует только на время оформления покупки и нигде не сохраняется.
type DeliveryOrder struct {
	Street        string        `json:"street"`
	City          string        `json:"city"`
	PostalCode    string        `json:"postalCode"`
	PhoneNumber   string        `json:"phoneNumber"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// Receipt подтверждает оформленную покупку.
type Receipt struct {
	OrderID string  `json:"orderId"`
	OfferID string  `json:"offerId"`
	Total   float64 `json:"total"`
}
