// Package catalog реализует репозиторий объявлений торговой площадки.
//
// Источником данных служит либо удалённая коллекция ресурсов (mock REST
// backend), либо встроенный набор объявлений из JSON-файла.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mzalewska/marketplace-system/internal/model"
)

// ErrNotFound возвращается, если объявление с указанным идентификатором отсутствует.
var (
	ErrNotFound = errors.New("offer not found")
	// ErrUnavailable возвращается при сетевой ошибке или неожиданном ответе источника.
	ErrUnavailable = errors.New("offer source unavailable")
	// ErrInvalidDraft возвращается при создании объявления с незаполненными полями.
	ErrInvalidDraft = errors.New("invalid offer draft")
	// ErrUnknownCategory возвращается для категории вне списка special/sale/mine/all.
	ErrUnknownCategory = errors.New("unknown offer category")
)

// Client инкапсулирует HTTP-взаимодействие с удалённой коллекцией объявлений.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент каталога по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

func (c *Client) getOffers(ctx context.Context, path string) ([]model.Offer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrUnavailable, resp.StatusCode, path)
	}

	var offers []model.Offer
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return nil, fmt.Errorf("%w: decode response: %s", ErrUnavailable, err)
	}

	return offers, nil
}

// SpecialOffers возвращает объявления из коллекции specialOffers.
func (c *Client) SpecialOffers(ctx context.Context) ([]model.Offer, error) {
	return c.getOffers(ctx, "/specialOffers")
}

// SaleOffers возвращает объявления из коллекции saleOffers.
func (c *Client) SaleOffers(ctx context.Context) ([]model.Offer, error) {
	return c.getOffers(ctx, "/saleOffers")
}

// MyOffers возвращает объявления из коллекции myOffers.
func (c *Client) MyOffers(ctx context.Context) ([]model.Offer, error) {
	return c.getOffers(ctx, "/myOffers")
}

// CreateOffer сохраняет новое объявление в коллекции myOffers.
func (c *Client) CreateOffer(ctx context.Context, offer model.Offer) (model.Offer, error) {
	body, err := json.Marshal(offer)
	if err != nil {
		return model.Offer{}, fmt.Errorf("marshal offer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/myOffers"), bytes.NewReader(body))
	if err != nil {
		return model.Offer{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Offer{}, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return model.Offer{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var created model.Offer
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return model.Offer{}, fmt.Errorf("%w: decode response: %s", ErrUnavailable, err)
	}

	return created, nil
}

// UpdateOffer полностью заменяет объявление в коллекции myOffers.
func (c *Client) UpdateOffer(ctx context.Context, offer model.Offer) (model.Offer, error) {
	body, err := json.Marshal(offer)
	if err != nil {
		return model.Offer{}, fmt.Errorf("marshal offer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url("/myOffers/"+offer.ID), bytes.NewReader(body))
	if err != nil {
		return model.Offer{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Offer{}, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Offer{}, fmt.Errorf("%w: %s", ErrNotFound, offer.ID)
	}

	if resp.StatusCode != http.StatusOK {
		return model.Offer{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var updated model.Offer
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return model.Offer{}, fmt.Errorf("%w: decode response: %s", ErrUnavailable, err)
	}

	return updated, nil
}

// DeleteOffer удаляет объявление из коллекции myOffers.
func (c *Client) DeleteOffer(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url("/myOffers/"+id), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	return nil
}
