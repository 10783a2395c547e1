package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mzalewska/marketplace-system/internal/model"
)

//go:embed data/offers.json
var fixturesFS embed.FS

type fixtureDocument struct {
	SpecialOffers []model.Offer `json:"specialOffers"`
	SaleOffers    []model.Offer `json:"saleOffers"`
	MyOffers      []model.Offer `json:"myOffers"`
}

// FixtureSource отдаёт каталог из встроенного JSON-файла.
// Используется, когда адрес удалённого каталога не задан. Изменения
// (create/update/delete) применяются к копии в памяти и живут до перезапуска.
type FixtureSource struct {
	mu  sync.RWMutex
	doc fixtureDocument
}

// NewFixtureSource загружает встроенный набор объявлений.
func NewFixtureSource() (*FixtureSource, error) {
	raw, err := fixturesFS.ReadFile("data/offers.json")
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var doc fixtureDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	return &FixtureSource{doc: doc}, nil
}

func copyOffers(src []model.Offer) []model.Offer {
	dst := make([]model.Offer, len(src))
	copy(dst, src)
	return dst
}

// SpecialOffers возвращает объявления из раздела specialOffers.
func (f *FixtureSource) SpecialOffers(ctx context.Context) ([]model.Offer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copyOffers(f.doc.SpecialOffers), nil
}

// SaleOffers возвращает объявления из раздела saleOffers.
func (f *FixtureSource) SaleOffers(ctx context.Context) ([]model.Offer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copyOffers(f.doc.SaleOffers), nil
}

// MyOffers возвращает объявления из раздела myOffers.
func (f *FixtureSource) MyOffers(ctx context.Context) ([]model.Offer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copyOffers(f.doc.MyOffers), nil
}

// CreateOffer добавляет объявление в раздел myOffers.
func (f *FixtureSource) CreateOffer(ctx context.Context, offer model.Offer) (model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc.MyOffers = append(f.doc.MyOffers, offer)
	return offer, nil
}

// UpdateOffer заменяет объявление в разделе myOffers.
func (f *FixtureSource) UpdateOffer(ctx context.Context, offer model.Offer) (model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.doc.MyOffers {
		if o.ID == offer.ID {
			f.doc.MyOffers[i] = offer
			return offer, nil
		}
	}
	return model.Offer{}, fmt.Errorf("%w: %s", ErrNotFound, offer.ID)
}

// DeleteOffer удаляет объявление из раздела myOffers.
func (f *FixtureSource) DeleteOffer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.doc.MyOffers {
		if o.ID == id {
			f.doc.MyOffers = append(f.doc.MyOffers[:i], f.doc.MyOffers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
