package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/mzalewska/marketplace-system/internal/model"
)

func TestFixtureSource_LoadsEmbeddedOffers(t *testing.T) {
	src, err := NewFixtureSource()
	if err != nil {
		t.Fatalf("NewFixtureSource error: %v", err)
	}
	ctx := context.Background()

	special, err := src.SpecialOffers(ctx)
	if err != nil {
		t.Fatalf("SpecialOffers error: %v", err)
	}
	if len(special) == 0 {
		t.Fatalf("embedded specialOffers is empty")
	}

	sale, err := src.SaleOffers(ctx)
	if err != nil {
		t.Fatalf("SaleOffers error: %v", err)
	}
	if len(sale) == 0 {
		t.Fatalf("embedded saleOffers is empty")
	}

	mine, err := src.MyOffers(ctx)
	if err != nil {
		t.Fatalf("MyOffers error: %v", err)
	}
	if len(mine) == 0 {
		t.Fatalf("embedded myOffers is empty")
	}
}

func TestFixtureSource_MutatesMyOffers(t *testing.T) {
	src, err := NewFixtureSource()
	if err != nil {
		t.Fatalf("NewFixtureSource error: %v", err)
	}
	ctx := context.Background()

	before, _ := src.MyOffers(ctx)

	offer := model.Offer{ID: "test-1", Name: "Gitara", Price: 380}
	if _, err := src.CreateOffer(ctx, offer); err != nil {
		t.Fatalf("CreateOffer error: %v", err)
	}

	after, _ := src.MyOffers(ctx)
	if len(after) != len(before)+1 {
		t.Fatalf("myOffers length = %d, want %d", len(after), len(before)+1)
	}

	offer.Price = 350
	updated, err := src.UpdateOffer(ctx, offer)
	if err != nil {
		t.Fatalf("UpdateOffer error: %v", err)
	}
	if updated.Price != 350 {
		t.Fatalf("price = %v, want 350", updated.Price)
	}

	if err := src.DeleteOffer(ctx, "test-1"); err != nil {
		t.Fatalf("DeleteOffer error: %v", err)
	}

	final, _ := src.MyOffers(ctx)
	if len(final) != len(before) {
		t.Fatalf("myOffers length = %d, want %d", len(final), len(before))
	}
}

func TestFixtureSource_UpdateMissingOffer(t *testing.T) {
	src, err := NewFixtureSource()
	if err != nil {
		t.Fatalf("NewFixtureSource error: %v", err)
	}

	_, err = src.UpdateOffer(context.Background(), model.Offer{ID: "no-such-offer"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := src.DeleteOffer(context.Background(), "no-such-offer"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
