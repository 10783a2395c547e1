package catalog

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mzalewska/marketplace-system/internal/model"
	"github.com/mzalewska/marketplace-system/internal/validation"
)

// Source описывает контракт источника объявлений (удалённый каталог или
// встроенный набор данных).
type Source interface {
	SpecialOffers(ctx context.Context) ([]model.Offer, error)
	SaleOffers(ctx context.Context) ([]model.Offer, error)
	MyOffers(ctx context.Context) ([]model.Offer, error)
	CreateOffer(ctx context.Context, offer model.Offer) (model.Offer, error)
	UpdateOffer(ctx context.Context, offer model.Offer) (model.Offer, error)
	DeleteOffer(ctx context.Context, id string) error
}

// Категории каталога.
const (
	CategorySpecial = "special"
	CategorySale    = "sale"
	CategoryMine    = "mine"
	CategoryAll     = "all"
)

// Filters задаёт условия поиска. Все поля необязательны и объединяются по И.
// Текстовые поля сравниваются как подстроки без учёта регистра.
// Query дополнительно ищет по имени, описанию, локации и цене как тексту.
type Filters struct {
	Name      string
	Location  string
	Category  string
	PriceFrom *float64
	PriceTo   *float64
	Query     string
}

// Repository предоставляет операции над каталогом объявлений.
// Кеширования нет: каждый вызов заново читает источник.
type Repository struct {
	source Source
	logger *zap.Logger

	mu           sync.Mutex
	lastIssuedID int64
	pendingViews map[string]int
}

// NewRepository создаёт репозиторий объявлений поверх указанного источника.
func NewRepository(source Source, logger *zap.Logger) *Repository {
	return &Repository{
		source:       source,
		logger:       logger,
		pendingViews: make(map[string]int),
	}
}

// List возвращает объявления указанной категории.
// Для категории all объединяются все разделы и сортируются по дате по
// убыванию; одинаковые даты сохраняют исходный порядок.
func (r *Repository) List(ctx context.Context, category string) ([]model.Offer, error) {
	switch category {
	case CategorySpecial:
		return r.source.SpecialOffers(ctx)
	case CategorySale:
		return r.source.SaleOffers(ctx)
	case CategoryMine:
		return r.source.MyOffers(ctx)
	case CategoryAll, "":
		all, err := r.allOffers(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].Date.After(all[j].Date)
		})
		return all, nil
	default:
		return nil, ErrUnknownCategory
	}
}

func (r *Repository) allOffers(ctx context.Context) ([]model.Offer, error) {
	special, err := r.source.SpecialOffers(ctx)
	if err != nil {
		return nil, err
	}
	sale, err := r.source.SaleOffers(ctx)
	if err != nil {
		return nil, err
	}
	mine, err := r.source.MyOffers(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]model.Offer, 0, len(special)+len(sale)+len(mine))
	all = append(all, special...)
	all = append(all, sale...)
	all = append(all, mine...)
	return all, nil
}

// Get возвращает объявление по идентификатору и учитывает просмотр.
func (r *Repository) Get(ctx context.Context, id string) (*model.Offer, error) {
	all, err := r.allOffers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range all {
		if all[i].ID == id {
			r.recordView(id)
			offer := all[i]
			return &offer, nil
		}
	}

	return nil, ErrNotFound
}

// Create валидирует черновик, назначает идентификатор и сохраняет объявление.
func (r *Repository) Create(ctx context.Context, draft model.OfferDraft) (*model.Offer, error) {
	if strings.TrimSpace(draft.Name) == "" ||
		strings.TrimSpace(draft.Description) == "" ||
		strings.TrimSpace(draft.Location) == "" {
		return nil, ErrInvalidDraft
	}

	price, ok := validation.ParsePrice(draft.Price)
	if !ok {
		return nil, ErrInvalidDraft
	}

	offer := model.Offer{
		ID:          r.nextID(),
		Name:        draft.Name,
		Description: draft.Description,
		Price:       price,
		Location:    draft.Location,
		Image:       draft.Image,
		Category:    draft.Category,
		Date:        time.Now().UTC(),
		Status:      model.OfferStatusActive,
		Views:       0,
	}

	created, err := r.source.CreateOffer(ctx, offer)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// nextID выдаёт идентификатор на основе текущего времени в миллисекундах.
// Два вызова в одну миллисекунду получают монотонно возрастающие значения.
func (r *Repository) nextID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= r.lastIssuedID {
		id = r.lastIssuedID + 1
	}
	r.lastIssuedID = id

	return strconv.FormatInt(id, 10)
}

// Update накладывает патч на существующее объявление из myOffers.
// Нечитаемая цена в патче превращается в 0 — поведение исходного приложения.
func (r *Repository) Update(ctx context.Context, id string, patch model.OfferPatch) (*model.Offer, error) {
	mine, err := r.source.MyOffers(ctx)
	if err != nil {
		return nil, err
	}

	var current *model.Offer
	for i := range mine {
		if mine[i].ID == id {
			current = &mine[i]
			break
		}
	}
	if current == nil {
		return nil, ErrNotFound
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Price != nil {
		current.Price = validation.CoercePrice(*patch.Price)
	}
	if patch.Location != nil {
		current.Location = *patch.Location
	}
	if patch.Image != nil {
		current.Image = *patch.Image
	}
	if patch.Category != nil {
		current.Category = *patch.Category
	}

	updated, err := r.source.UpdateOffer(ctx, *current)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Delete удаляет объявление из myOffers.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.source.DeleteOffer(ctx, id)
}

// Search возвращает объявления, удовлетворяющие всем заданным фильтрам.
// Порядок соответствует порядку источников; пустой результат — не ошибка.
func (r *Repository) Search(ctx context.Context, filters Filters) ([]model.Offer, error) {
	all, err := r.allOffers(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.Offer, 0)
	for _, offer := range all {
		if matchesFilters(offer, filters) {
			result = append(result, offer)
		}
	}

	return result, nil
}

func matchesFilters(offer model.Offer, f Filters) bool {
	if f.Name != "" && !containsFold(offer.Name, f.Name) {
		return false
	}
	if f.Location != "" && !containsFold(offer.Location, f.Location) {
		return false
	}
	if f.Category != "" && !containsFold(offer.Category, f.Category) {
		return false
	}
	if f.PriceFrom != nil && offer.Price < *f.PriceFrom {
		return false
	}
	if f.PriceTo != nil && offer.Price > *f.PriceTo {
		return false
	}
	if f.Query != "" && !matchesQuery(offer, f.Query) {
		return false
	}
	return true
}

// matchesQuery повторяет свободный поиск исходного приложения: подстрока
// в имени, описании, локации или в цене, записанной как текст.
func matchesQuery(offer model.Offer, query string) bool {
	price := strconv.FormatFloat(offer.Price, 'f', -1, 64)
	return containsFold(offer.Name, query) ||
		containsFold(offer.Description, query) ||
		containsFold(offer.Location, query) ||
		strings.Contains(price, strings.TrimSpace(query))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

func (r *Repository) recordView(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingViews[id]++
}

// StartViewFlush запускает фоновый процесс, который периодически переносит
// накопленные просмотры в счётчик views объявлений из myOffers.
// Просмотры чужих объявлений сбрасываются: коллекция ресурсов принимает
// изменения только для myOffers.
func (r *Repository) StartViewFlush(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.flushViews(ctx)
			}
		}
	}()
}

func (r *Repository) flushViews(ctx context.Context) {
	r.mu.Lock()
	pending := r.pendingViews
	r.pendingViews = make(map[string]int)
	r.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	mine, err := r.source.MyOffers(ctx)
	if err != nil {
		// Источник недоступен — возвращаем счётчики до следующего тика.
		r.restoreViews(pending)
		return
	}

	for i := range mine {
		n, ok := pending[mine[i].ID]
		if !ok {
			continue
		}
		mine[i].Views += n
		if _, err := r.source.UpdateOffer(ctx, mine[i]); err != nil {
			if errors.Is(err, ErrUnavailable) {
				r.restoreViews(map[string]int{mine[i].ID: n})
			}
			if r.logger != nil {
				r.logger.Warn("flush views failed", zap.String("offer", mine[i].ID), zap.Error(err))
			}
		}
	}
}

func (r *Repository) restoreViews(pending map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range pending {
		r.pendingViews[id] += n
	}
}
