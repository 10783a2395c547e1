// Package bucket реализует корзину покупателя поверх key-value хранилища.
//
// Корзина хранится целиком как JSON-массив под фиксированным ключом;
// каждое изменение — это цикл «прочитать — изменить — записать».
package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mzalewska/marketplace-system/internal/model"
	"github.com/mzalewska/marketplace-system/internal/storage"
)

// ErrIncompleteDelivery возвращается, если форма доставки заполнена не полностью.
var ErrIncompleteDelivery = errors.New("incomplete delivery order")

// Store описывает контракт key-value хранилища, используемый корзиной.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// Manager управляет корзиной покупателя.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// NewManager создаёт менеджер корзины поверх указанного хранилища.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// decodeItems разбирает сохранённый массив корзины.
// Повреждённый JSON превращается в пустую корзину: пользователь видит пустой
// список, а не ошибку. Аномалия при этом попадает в лог.
func (m *Manager) decodeItems(raw []byte) []model.Offer {
	if len(raw) == 0 {
		return []model.Offer{}
	}

	var items []model.Offer
	if err := json.Unmarshal(raw, &items); err != nil {
		if m.logger != nil {
			m.logger.Warn("stored bucket is not valid JSON, treating as empty", zap.Error(err))
		}
		return []model.Offer{}
	}

	return items
}

// Load возвращает содержимое корзины. Отсутствие ключа — пустая корзина.
func (m *Manager) Load(ctx context.Context) ([]model.Offer, error) {
	raw, err := m.store.Get(ctx, storage.KeyBucketItems)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return []model.Offer{}, nil
		}
		return nil, fmt.Errorf("load bucket: %w", err)
	}

	return m.decodeItems(raw), nil
}

// Add кладёт копию объявления в корзину.
// Повторное добавление того же идентификатора ничего не меняет и
// возвращает added = false.
func (m *Manager) Add(ctx context.Context, offer model.Offer) (bool, error) {
	added := false

	err := m.store.Update(ctx, storage.KeyBucketItems, func(current []byte) ([]byte, error) {
		items := m.decodeItems(current)

		for _, item := range items {
			if item.ID == offer.ID {
				return json.Marshal(items)
			}
		}

		items = append(items, offer)
		added = true
		return json.Marshal(items)
	})
	if err != nil {
		return false, fmt.Errorf("add to bucket: %w", err)
	}

	return added, nil
}

// Remove убирает объявление из корзины и возвращает получившийся список.
// Удаление отсутствующего идентификатора — no-op.
func (m *Manager) Remove(ctx context.Context, itemID string) ([]model.Offer, error) {
	var result []model.Offer

	err := m.store.Update(ctx, storage.KeyBucketItems, func(current []byte) ([]byte, error) {
		items := m.decodeItems(current)

		kept := items[:0]
		for _, item := range items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}

		result = make([]model.Offer, len(kept))
		copy(result, kept)

		return json.Marshal(kept)
	})
	if err != nil {
		return nil, fmt.Errorf("remove from bucket: %w", err)
	}

	return result, nil
}

// Total возвращает сумму цен позиций. Чистая функция без обращений к хранилищу.
func Total(items []model.Offer) float64 {
	var total float64
	for _, item := range items {
		total += item.Price
	}
	return total
}

// validDelivery проверяет минимальную полноту формы доставки:
// все четыре поля адреса и способ оплаты.
func validDelivery(d model.DeliveryOrder) bool {
	if strings.TrimSpace(d.Street) == "" ||
		strings.TrimSpace(d.City) == "" ||
		strings.TrimSpace(d.PostalCode) == "" ||
		strings.TrimSpace(d.PhoneNumber) == "" {
		return false
	}

	switch d.PaymentMethod {
	case model.PaymentMethodCard, model.PaymentMethodCash, model.PaymentMethodTransfer:
		return true
	default:
		return false
	}
}

// Checkout подтверждает покупку позиции и убирает её из корзины.
// Реальной оплаты нет: при полной форме доставки операция всегда успешна.
// При неполной форме корзина остаётся нетронутой.
func (m *Manager) Checkout(ctx context.Context, itemID string, delivery model.DeliveryOrder) (*model.Receipt, error) {
	if !validDelivery(delivery) {
		return nil, ErrIncompleteDelivery
	}

	items, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, item := range items {
		if item.ID == itemID {
			total = item.Price
			break
		}
	}

	if _, err := m.Remove(ctx, itemID); err != nil {
		return nil, err
	}

	return &model.Receipt{
		OrderID: uuid.NewString(),
		OfferID: itemID,
		Total:   total,
	}, nil
}
