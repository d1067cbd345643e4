package guestcart

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

type stubMerger struct {
	req   *types.MergeRequest
	calls int
	err   error
}

func (s *stubMerger) MergeCart(ctx context.Context, req types.MergeRequest) error {
	s.calls++
	s.req = &req
	return s.err
}

func newTestCart(t *testing.T) *Cart {
	t.Helper()
	cart, err := New(NewMemoryBackend(),
		logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cart
}

func TestAddMergesSameKey(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	ctx := context.Background()

	if err := cart.Add(ctx, AddInput{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cart.Add(ctx, AddInput{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cart.Add(ctx, AddInput{ProductID: "p1", OfferID: "o1", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := cart.Items(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", items[0].Quantity)
	}
}

func TestAddForcesBogoQuantity(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	ctx := context.Background()

	if err := cart.Add(ctx, AddInput{
		ProductID: "p1",
		OfferID:   "o1",
		OfferType: types.OfferTypeBogo,
		Quantity:  7,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := cart.Items(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected bogo quantity 2, got %d", items[0].Quantity)
	}

	// Re-adding the same bogo offer must hold at 2, not stack.
	if err := cart.Add(ctx, AddInput{
		ProductID: "p1",
		OfferID:   "o1",
		OfferType: types.OfferTypeBogo,
		Quantity:  1,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ = cart.Items(ctx)
	if items[0].Quantity != 2 {
		t.Fatalf("expected bogo quantity pinned at 2, got %d", items[0].Quantity)
	}
}

func TestUpdateBelowOneRemoves(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	ctx := context.Background()

	if err := cart.Add(ctx, AddInput{ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cart.Update(ctx, "p1", "", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := cart.Items(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %d rows", len(items))
	}
}

func TestUpdateMissingItem(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	err := cart.Update(context.Background(), "missing", "", 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSnapshotSharesDerivations(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	ctx := context.Background()

	if err := cart.Add(ctx, AddInput{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := cart.Snapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Subtotal().Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected subtotal 200, got %s", snap.Subtotal())
	}
}

func TestMergeIntoClearsOnSuccess(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	ctx := context.Background()
	if err := cart.Add(ctx, AddInput{ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	merger := &stubMerger{}
	if err := cart.MergeInto(ctx, merger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merger.req == nil || len(merger.req.Items) != 1 {
		t.Fatalf("expected merge request with 1 item, got %+v", merger.req)
	}

	items, err := cart.Items(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected guest cart cleared after merge, got %d rows", len(items))
	}
}

func TestMergeIntoKeepsLocalOnFailure(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	ctx := context.Background()
	if err := cart.Add(ctx, AddInput{ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	merger := &stubMerger{err: errors.New("boom")}
	if err := cart.MergeInto(ctx, merger); err == nil {
		t.Fatal("expected merge error")
	}

	items, err := cart.Items(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected guest cart kept on failure, got %d rows", len(items))
	}
}

func TestMergeIntoSkipsEmptyCart(t *testing.T) {
	t.Parallel()

	cart := newTestCart(t)
	merger := &stubMerger{}
	if err := cart.MergeInto(context.Background(), merger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merger.calls != 0 {
		t.Fatalf("expected no merge call for empty cart, got %d", merger.calls)
	}
}
