package stubapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/storefront-client/internal/api"
	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

type staticTokens struct {
	token string
}

func (s staticTokens) BearerToken(ctx context.Context) (string, error) {
	return s.token, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
}

func newClientAgainstStub(t *testing.T, catalog map[string]types.ProductSnapshot, token string) *api.Client {
	t.Helper()
	server := httptest.NewServer(NewServer(testLogger(), catalog).Router())
	t.Cleanup(server.Close)

	client, err := api.NewClient(config.APIConfig{BaseURL: server.URL},
		staticTokens{token: token}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestCartRoundTrip(t *testing.T) {
	t.Parallel()

	client := newClientAgainstStub(t, nil, "token-1")
	ctx := context.Background()

	message, err := client.AddItem(ctx, types.AddItemRequest{ProductID: "p1", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if message != "Item added to cart" {
		t.Fatalf("unexpected message %q", message)
	}

	items, err := client.FetchCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", items)
	}

	if err := client.UpdateItem(ctx, "p1", types.UpdateItemRequest{Quantity: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ = client.FetchCart(ctx)
	if items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", items[0].Quantity)
	}

	if err := client.RemoveItem(ctx, "p1", types.RemoveItemRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ = client.FetchCart(ctx)
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v", items)
	}
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	t.Parallel()

	client := newClientAgainstStub(t, nil, "")
	_, err := client.FetchCart(context.Background())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAuthRequired {
		t.Fatalf("expected auth required, got %v", err)
	}
}

func TestAddForcesBogoQuantity(t *testing.T) {
	t.Parallel()

	client := newClientAgainstStub(t, nil, "token-1")
	ctx := context.Background()

	if _, err := client.AddItem(ctx, types.AddItemRequest{
		ProductID: "p1",
		OfferID:   "o1",
		OfferType: types.OfferTypeBogo,
		Quantity:  6,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := client.FetchCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected bogo quantity 2, got %d", items[0].Quantity)
	}
}

func TestUpdateMissingItemReturnsServerMessage(t *testing.T) {
	t.Parallel()

	client := newClientAgainstStub(t, nil, "token-1")
	err := client.UpdateItem(context.Background(), "missing", types.UpdateItemRequest{Quantity: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeServerRejected {
		t.Fatalf("expected server rejection, got %v", err)
	}
	if typed.Message() != "Item not found in cart" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestCartsIsolatedPerToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(NewServer(testLogger(), nil).Router())
	t.Cleanup(server.Close)

	newClient := func(token string) *api.Client {
		client, err := api.NewClient(config.APIConfig{BaseURL: server.URL},
			staticTokens{token: token}, testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return client
	}

	ctx := context.Background()
	first := newClient("token-1")
	second := newClient("token-2")

	if _, err := first.AddItem(ctx, types.AddItemRequest{ProductID: "p1", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := second.FetchCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected isolated carts, got %+v", items)
	}
}

func TestValidateFlagsUnknownProducts(t *testing.T) {
	t.Parallel()

	catalog := map[string]types.ProductSnapshot{
		"known": {Name: "Known product"},
	}
	client := newClientAgainstStub(t, catalog, "token-1")
	ctx := context.Background()

	if _, err := client.AddItem(ctx, types.AddItemRequest{ProductID: "known", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.AddItem(ctx, types.AddItemRequest{ProductID: "gone", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := client.Validate(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, result := range results {
		if result.ProductID == "known" && !result.Available {
			t.Fatal("expected known product to be available")
		}
		if result.ProductID == "gone" && result.Available {
			t.Fatal("expected unknown product to be unavailable")
		}
	}
}

func TestMergeCombinesQuantities(t *testing.T) {
	t.Parallel()

	client := newClientAgainstStub(t, nil, "token-1")
	ctx := context.Background()

	if _, err := client.AddItem(ctx, types.AddItemRequest{ProductID: "p1", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.MergeCart(ctx, types.MergeRequest{Items: []types.CartItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := client.FetchCart(ctx)
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

func TestUnauthorizedResponseShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(NewServer(testLogger(), nil).Router())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/cart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
