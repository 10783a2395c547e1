package bucket

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mzalewska/marketplace-system/internal/model"
	"github.com/mzalewska/marketplace-system/internal/storage"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	next, err := fn(s.data[key])
	if err != nil {
		return err
	}
	s.data[key] = next
	return nil
}

func newTestManager() (*Manager, *memStore) {
	store := newMemStore()
	return NewManager(store, zap.NewNop()), store
}

func validDeliveryOrder() model.DeliveryOrder {
	return model.DeliveryOrder{
		Street:        "Długa 12",
		City:          "Kraków",
		PostalCode:    "31-147",
		PhoneNumber:   "+48 600 100 200",
		PaymentMethod: model.PaymentMethodCard,
	}
}

func TestLoad_EmptyWhenKeyAbsent(t *testing.T) {
	m, _ := newTestManager()

	items, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty bucket, got %d items", len(items))
	}
}

func TestLoad_CorruptJSONDegradesToEmpty(t *testing.T) {
	m, store := newTestManager()
	store.data[storage.KeyBucketItems] = []byte("{not json")

	items, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty bucket for corrupt JSON, got %d items", len(items))
	}
}

func TestAdd_DeduplicatesByID(t *testing.T) {
	m, _ := newTestManager()
	offer := model.Offer{ID: "1", Name: "Gitara", Price: 380}

	added, err := m.Add(context.Background(), offer)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if !added {
		t.Fatalf("first Add must report added = true")
	}

	added, err = m.Add(context.Background(), offer)
	if err != nil {
		t.Fatalf("second Add error: %v", err)
	}
	if added {
		t.Fatalf("second Add must report added = false")
	}

	items, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("bucket has %d items, want 1", len(items))
	}
}

func TestRemove_RoundTrip(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if _, err := m.Add(ctx, model.Offer{ID: id, Price: 10}); err != nil {
			t.Fatalf("Add(%s) error: %v", id, err)
		}
	}

	remaining, err := m.Remove(ctx, "2")
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d items, want 2", len(remaining))
	}

	items, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	for _, item := range items {
		if item.ID == "2" {
			t.Fatalf("removed item still present after reload")
		}
	}
	if items[0].ID != "1" || items[1].ID != "3" {
		t.Fatalf("unexpected items after remove: %+v", items)
	}
}

func TestRemove_MissingIDIsNoop(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Add(ctx, model.Offer{ID: "1", Price: 10}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	remaining, err := m.Remove(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "1" {
		t.Fatalf("unexpected items after noop remove: %+v", remaining)
	}
}

func TestTotal(t *testing.T) {
	if got := Total(nil); got != 0 {
		t.Fatalf("Total(nil) = %v, want 0", got)
	}

	items := []model.Offer{
		{ID: "1", Price: 10.50},
		{ID: "2", Price: 5.25},
	}
	if got := Total(items); got != 15.75 {
		t.Fatalf("Total = %v, want 15.75", got)
	}
}

func TestCheckout_Success(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Add(ctx, model.Offer{ID: "1", Price: 99.99}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	receipt, err := m.Checkout(ctx, "1", validDeliveryOrder())
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}
	if receipt.OfferID != "1" || receipt.Total != 99.99 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.OrderID == "" {
		t.Fatalf("receipt must carry an order id")
	}

	items, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("bucket not empty after checkout: %+v", items)
	}
}

func TestCheckout_IncompleteDeliveryLeavesBucket(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Add(ctx, model.Offer{ID: "1", Price: 99.99}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	delivery := validDeliveryOrder()
	delivery.City = ""

	_, err := m.Checkout(ctx, "1", delivery)
	if err != ErrIncompleteDelivery {
		t.Fatalf("expected ErrIncompleteDelivery, got %v", err)
	}

	items, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "1" {
		t.Fatalf("bucket changed after failed checkout: %+v", items)
	}
}

func TestCheckout_MissingPaymentMethod(t *testing.T) {
	m, _ := newTestManager()

	delivery := validDeliveryOrder()
	delivery.PaymentMethod = ""

	_, err := m.Checkout(context.Background(), "1", delivery)
	if err != ErrIncompleteDelivery {
		t.Fatalf("expected ErrIncompleteDelivery, got %v", err)
	}
}
