// Package handler содержит HTTP-обработчики API сервиса торговой площадки.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mzalewska/marketplace-system/internal/bucket"
	"github.com/mzalewska/marketplace-system/internal/catalog"
	"github.com/mzalewska/marketplace-system/internal/middleware"
	"github.com/mzalewska/marketplace-system/internal/model"
	"github.com/mzalewska/marketplace-system/internal/session"
)

// OfferRepository определяет контракт каталога объявлений, используемый HTTP-обработчиками.
type OfferRepository interface {
	List(ctx context.Context, category string) ([]model.Offer, error)
	Get(ctx context.Context, id string) (*model.Offer, error)
	Create(ctx context.Context, draft model.OfferDraft) (*model.Offer, error)
	Update(ctx context.Context, id string, patch model.OfferPatch) (*model.Offer, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filters catalog.Filters) ([]model.Offer, error)
}

// BucketManager определяет контракт корзины, используемый HTTP-обработчиками.
type BucketManager interface {
	Load(ctx context.Context) ([]model.Offer, error)
	Add(ctx context.Context, offer model.Offer) (bool, error)
	Remove(ctx context.Context, itemID string) ([]model.Offer, error)
	Checkout(ctx context.Context, itemID string, delivery model.DeliveryOrder) (*model.Receipt, error)
}

// SessionController определяет контракт сессий, используемый HTTP-обработчиками.
type SessionController interface {
	Register(ctx context.Context, req session.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Current(ctx context.Context) (*model.User, error)
	Logout(ctx context.Context) error
	RecoverPassword(ctx context.Context, email string) (string, error)
	UpdateProfile(ctx context.Context, patch session.ProfilePatch) (*model.User, error)
	ChangePassword(ctx context.Context, newPassword, confirmPassword string) error
}

// Handler реализует HTTP-обработчики API сервиса торговой площадки.
type Handler struct {
	offers         OfferRepository
	bucket         BucketManager
	sessions       SessionController
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(offers OfferRepository, bucket BucketManager, sessions SessionController, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		offers:         offers,
		bucket:         bucket,
		sessions:       sessions,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type userResponse struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	DateCreated string `json:"dateCreated"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		Email:       u.Email,
		Name:        u.Name,
		Surname:     u.Surname,
		DateCreated: u.DateCreated.Format(time.RFC3339),
	}
}

// Register обрабатывает регистрацию нового пользователя. Вход при этом не выполняется.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req session.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.sessions.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidProfile):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, session.ErrEmailTaken):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("register user error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.Email)
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout снимает активную сессию и сбрасывает cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Error("logout error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// Session возвращает активную сессию; используется при старте приложения.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.Current(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("read session error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type recoverRequest struct {
	Email string `json:"email"`
}

type recoverResponse struct {
	TemporaryPassword string `json:"temporaryPassword"`
}

// RecoverPassword сбрасывает пароль на временный и возвращает его.
func (h *Handler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	temp, err := h.sessions.RecoverPassword(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("recover password error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, recoverResponse{TemporaryPassword: temp})
}

// UpdateProfile меняет имя и фамилию активного пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch session.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.sessions.UpdateProfile(r.Context(), patch)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("update profile error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword устанавливает новый пароль активного пользователя.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.sessions.ChangePassword(r.Context(), req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrPasswordMismatch), errors.Is(err, session.ErrPasswordTooShort):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, session.ErrNoSession):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		default:
			h.logger.Error("change password error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListOffers возвращает объявления запрошенной категории.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	offers, err := h.offers.List(r.Context(), category)
	if err != nil {
		h.handleCatalogError(w, err, "list offers")
		return
	}

	if len(offers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, offers)
}

// GetOffer возвращает одно объявление по идентификатору.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	offer, err := h.offers.Get(r.Context(), id)
	if err != nil {
		h.handleCatalogError(w, err, "get offer")
		return
	}

	h.writeJSON(w, http.StatusOK, offer)
}

// CreateOffer сохраняет новое объявление пользователя.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var draft model.OfferDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	offer, err := h.offers.Create(r.Context(), draft)
	if err != nil {
		h.handleCatalogError(w, err, "create offer")
		return
	}

	h.writeJSON(w, http.StatusCreated, offer)
}

// UpdateOffer применяет частичное обновление к объявлению пользователя.
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch model.OfferPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	offer, err := h.offers.Update(r.Context(), id, patch)
	if err != nil {
		h.handleCatalogError(w, err, "update offer")
		return
	}

	h.writeJSON(w, http.StatusOK, offer)
}

// DeleteOffer удаляет объявление пользователя.
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.offers.Delete(r.Context(), id); err != nil {
		h.handleCatalogError(w, err, "delete offer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchOffers ищет объявления по фильтрам из query-параметров.
// Пустой результат — это пустой массив, а не ошибка.
func (h *Handler) SearchOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := catalog.Filters{
		Name:     q.Get("name"),
		Location: q.Get("location"),
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}

	if v := q.Get("price_from"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filters.PriceFrom = &f
	}
	if v := q.Get("price_to"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filters.PriceTo = &f
	}

	offers, err := h.offers.Search(r.Context(), filters)
	if err != nil {
		h.handleCatalogError(w, err, "search offers")
		return
	}

	h.writeJSON(w, http.StatusOK, offers)
}

func (h *Handler) handleCatalogError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, catalog.ErrInvalidDraft), errors.Is(err, catalog.ErrUnknownCategory):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrUnavailable):
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type bucketResponse struct {
	Items []model.Offer `json:"items"`
	Total float64       `json:"total"`
}

// GetBucket возвращает содержимое корзины и сумму по позициям.
func (h *Handler) GetBucket(w http.ResponseWriter, r *http.Request) {
	items, err := h.bucket.Load(r.Context())
	if err != nil {
		h.logger.Error("load bucket error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, bucketResponse{
		Items: items,
		Total: bucket.Total(items),
	})
}

type addToBucketResponse struct {
	Added bool `json:"added"`
}

// AddToBucket кладёт копию объявления в корзину.
// Для уже добавленного идентификатора возвращает added = false.
func (h *Handler) AddToBucket(w http.ResponseWriter, r *http.Request) {
	var offer model.Offer
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if offer.ID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	added, err := h.bucket.Add(r.Context(), offer)
	if err != nil {
		h.logger.Error("add to bucket error", zap.Error(err), zap.String("offer", offer.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, addToBucketResponse{Added: added})
}

// RemoveFromBucket убирает позицию из корзины и возвращает остаток.
func (h *Handler) RemoveFromBucket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	items, err := h.bucket.Remove(r.Context(), id)
	if err != nil {
		h.logger.Error("remove from bucket error", zap.Error(err), zap.String("item", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, bucketResponse{
		Items: items,
		Total: bucket.Total(items),
	})
}

type checkoutResponse struct {
	Success bool           `json:"success"`
	Receipt *model.Receipt `json:"receipt,omitempty"`
}

// Checkout подтверждает покупку позиции корзины.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var delivery model.DeliveryOrder
	if err := json.NewDecoder(r.Body).Decode(&delivery); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	receipt, err := h.bucket.Checkout(r.Context(), id, delivery)
	if err != nil {
		if errors.Is(err, bucket.ErrIncompleteDelivery) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("checkout error", zap.Error(err), zap.String("item", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, checkoutResponse{Success: true, Receipt: receipt})
}
