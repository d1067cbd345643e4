package cart

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-client/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/metrics"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

const (
	bogoForcedQuantity = 2

	msgItemAdded   = "Item added to cart"
	msgCartUpdated = "Cart updated"
	msgItemRemoved = "Item removed from cart"
	msgCartCleared = "Cart cleared"
)

// Result is the structured outcome of a cart operation. Operations never
// propagate raw errors to callers; Error carries the user-facing string.
type Result struct {
	Success bool
	Message string
	Error   string
}

func okResult(message string) Result {
	return Result{Success: true, Message: message}
}

func failResult(err error) Result {
	return Result{Success: false, Error: pkgerrors.PublicMessage(err)}
}

type apiClient interface {
	FetchCart(ctx context.Context) ([]types.CartItem, error)
	AddItem(ctx context.Context, req types.AddItemRequest) (string, error)
	UpdateItem(ctx context.Context, productID string, req types.UpdateItemRequest) error
	RemoveItem(ctx context.Context, productID string, req types.RemoveItemRequest) error
	ClearCart(ctx context.Context) error
	Validate(ctx context.Context) ([]types.ValidationResult, error)
}

type retryer interface {
	Do(ctx context.Context, operation string, op func(context.Context) error) error
}

type logoutNotifier interface {
	OnLogout(session.LogoutHook)
}

// AddInput carries everything Add needs to create or merge a line item.
type AddInput struct {
	ProductID string
	OfferID   string
	OfferType types.OfferType
	Quantity  int
}

// StoreParams configure the cart store.
type StoreParams struct {
	API         apiClient
	Sessions    session.Source
	Retry       retryer
	Logger      *logger.Logger
	Metrics     *metrics.CartMetrics
	ShippingFee decimal.Decimal
}

// Store owns the client-held cart snapshot. Every mutation is applied
// optimistically, confirmed by the server round trip, and rolled back on
// failure. Mutations serialize on an operation lock; refreshes coalesce and
// discard results that raced with a newer mutation.
type Store struct {
	api         apiClient
	sessions    session.Source
	retry       retryer
	logg        *logger.Logger
	metrics     *metrics.CartMetrics
	shippingFee decimal.Decimal

	opMu sync.Mutex // serializes mutations end to end

	mu      sync.Mutex // guards items and version
	items   []LineItem
	version uint64

	sfg singleflight.Group
}

// NewStore builds the cart store. When the session source also exposes
// logout notifications the store registers itself to clear on session end.
func NewStore(params StoreParams) (*Store, error) {
	if params.API == nil {
		return nil, fmt.Errorf("api client required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session source required")
	}
	if params.Retry == nil {
		return nil, fmt.Errorf("retry executor required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	s := &Store{
		api:         params.API,
		sessions:    params.Sessions,
		retry:       params.Retry,
		logg:        params.Logger,
		metrics:     params.Metrics,
		shippingFee: params.ShippingFee,
	}

	if notifier, ok := params.Sessions.(logoutNotifier); ok {
		notifier.OnLogout(func(ctx context.Context) {
			s.Reset()
			s.logg.Info(ctx, "cart cleared on session end")
		})
	}

	return s, nil
}

// Snapshot returns a deep copy of the current cart state; callers cannot
// mutate the store through it.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Items: cloneItems(s.items)}
}

// Summary derives the checkout rollup with the configured shipping fee.
func (s *Store) Summary() Summary {
	return s.Snapshot().Summarize(s.shippingFee)
}

// Reset empties the local snapshot without a server round trip. Used on
// logout and session loss.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.version++
}

// Add creates or merges a line item server-side, then refreshes the local
// snapshot. BOGO offers always force quantity 2 regardless of the request;
// there is no optimistic row, so nothing to roll back.
func (s *Store) Add(ctx context.Context, input AddInput) Result {
	start := time.Now()
	defer s.observe("add", start)

	if result, ok := s.requireSession(ctx, "add"); !ok {
		return result
	}

	quantity := input.Quantity
	offerType := types.NormalizeOfferType(string(input.OfferType))
	if offerType == types.OfferTypeBogo {
		quantity = bogoForcedQuantity
	}
	if quantity < 1 {
		s.metrics.IncFailure("add")
		return failResult(pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1"))
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	req := types.AddItemRequest{
		ProductID: input.ProductID,
		Quantity:  quantity,
		OfferID:   input.OfferID,
	}
	if offerType != types.OfferTypeNone {
		req.OfferType = offerType
	}

	message, err := s.api.AddItem(ctx, req)
	if err != nil {
		s.metrics.IncFailure("add")
		logCtx := s.logg.WithItem(s.logg.WithOperation(ctx, "add"), input.ProductID, input.OfferID)
		s.logg.Error(logCtx, "add item failed", err)
		return failResult(err)
	}

	// The server now holds a row the local state predates. Bump the version
	// so any fetch that started before the add discards its result.
	s.mu.Lock()
	s.version++
	s.mu.Unlock()

	s.refreshLocked(ctx)
	s.metrics.IncSuccess("add")
	if message == "" {
		message = msgItemAdded
	}
	return okResult(message)
}

// Update rewrites the quantity for the (product, offer) pair. Quantities
// below 1 delegate to Remove. The optimistic write and the rollback share
// the same matching predicate.
func (s *Store) Update(ctx context.Context, productID, offerID string, quantity int) Result {
	if quantity < 1 {
		return s.Remove(ctx, productID, offerID)
	}

	start := time.Now()
	defer s.observe("update", start)

	if result, ok := s.requireSession(ctx, "update"); !ok {
		return result
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	ctx = s.logg.WithItem(ctx, productID, offerID)
	key := Key{ProductID: productID, OfferID: offerID}
	snapshot, found := s.applyOptimistic(key, func(items []LineItem, at int) []LineItem {
		items[at].Quantity = quantity
		return items
	})
	if !found {
		s.metrics.IncFailure("update")
		return failResult(pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart"))
	}

	err := s.retry.Do(ctx, "update", func(ctx context.Context) error {
		return s.api.UpdateItem(ctx, productID, types.UpdateItemRequest{
			Quantity: quantity,
			OfferID:  offerID,
		})
	})
	if err != nil {
		s.rollback(ctx, "update", snapshot)
		return failResult(err)
	}

	s.refreshLocked(ctx)
	s.metrics.IncSuccess("update")
	return okResult(msgCartUpdated)
}

// Remove deletes the line item for the (product, offer) pair, rolling back
// the optimistic filter when the server call fails.
func (s *Store) Remove(ctx context.Context, productID, offerID string) Result {
	start := time.Now()
	defer s.observe("remove", start)

	if result, ok := s.requireSession(ctx, "remove"); !ok {
		return result
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	ctx = s.logg.WithItem(ctx, productID, offerID)
	key := Key{ProductID: productID, OfferID: offerID}
	snapshot, found := s.applyOptimistic(key, func(items []LineItem, at int) []LineItem {
		return append(items[:at], items[at+1:]...)
	})
	if !found {
		s.metrics.IncFailure("remove")
		return failResult(pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart"))
	}

	err := s.retry.Do(ctx, "remove", func(ctx context.Context) error {
		return s.api.RemoveItem(ctx, productID, types.RemoveItemRequest{OfferID: offerID})
	})
	if err != nil {
		s.rollback(ctx, "remove", snapshot)
		return failResult(err)
	}

	s.refreshLocked(ctx)
	s.metrics.IncSuccess("remove")
	return okResult(msgItemRemoved)
}

// Clear empties the cart, rolling back to the full pre-clear snapshot when
// the server call fails.
func (s *Store) Clear(ctx context.Context) Result {
	start := time.Now()
	defer s.observe("clear", start)

	if result, ok := s.requireSession(ctx, "clear"); !ok {
		return result
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	snapshot := cloneItems(s.items)
	s.items = nil
	s.version++
	s.mu.Unlock()

	err := s.retry.Do(ctx, "clear", func(ctx context.Context) error {
		return s.api.ClearCart(ctx)
	})
	if err != nil {
		s.rollback(ctx, "clear", snapshot)
		return failResult(err)
	}

	s.metrics.IncSuccess("clear")
	return okResult(msgCartCleared)
}

// Refresh re-fetches the authoritative cart. Concurrent refreshes coalesce;
// a result that raced with a newer mutation is discarded.
func (s *Store) Refresh(ctx context.Context) Result {
	if result, ok := s.requireSession(ctx, "refresh"); !ok {
		return result
	}
	if err := s.refresh(ctx); err != nil {
		return failResult(err)
	}
	return okResult("")
}

// Validate asks the server to revalidate availability of the current items
// and aggregates every unavailable row into one failure.
func (s *Store) Validate(ctx context.Context) Result {
	if result, ok := s.requireSession(ctx, "validate"); !ok {
		return result
	}

	results, err := s.api.Validate(ctx)
	if err != nil {
		s.logg.Error(s.logg.WithOperation(ctx, "validate"), "cart validation failed", err)
		return failResult(err)
	}

	var errs []error
	for _, r := range results {
		if r.Available {
			continue
		}
		reason := r.Reason
		if reason == "" {
			reason = "no longer available"
		}
		errs = append(errs, fmt.Errorf("%s: %s", r.ProductID, reason))
	}
	if combined := multierr.Combine(errs...); combined != nil {
		return Result{Success: false, Error: combined.Error()}
	}
	return okResult("")
}

func (s *Store) requireSession(ctx context.Context, op string) (Result, bool) {
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		s.metrics.IncFailure(op)
		return failResult(err), false
	}
	if sess == nil {
		s.metrics.IncFailure(op)
		return failResult(pkgerrors.New(pkgerrors.CodeAuthRequired, "")), false
	}
	return Result{}, true
}

// applyOptimistic runs mutate against the row matching key and returns the
// pre-mutation items for rollback. The caller must hold opMu.
func (s *Store) applyOptimistic(key Key, mutate func(items []LineItem, at int) []LineItem) ([]LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := -1
	for i, li := range s.items {
		if li.Key() == key {
			at = i
			break
		}
	}
	if at == -1 {
		return nil, false
	}

	snapshot := cloneItems(s.items)
	s.items = mutate(cloneItems(s.items), at)
	s.version++
	return snapshot, true
}

func (s *Store) rollback(ctx context.Context, op string, snapshot []LineItem) {
	s.mu.Lock()
	s.items = snapshot
	s.version++
	s.mu.Unlock()

	s.metrics.IncRollback(op)
	s.metrics.IncFailure(op)
	s.logg.Warn(s.logg.WithOperation(ctx, op), "optimistic mutation rolled back")
}

// refreshLocked reconciles after a confirmed mutation. The caller holds
// opMu, so no competing mutation can interleave; a fetch failure here is
// logged but does not fail the already-confirmed operation.
func (s *Store) refreshLocked(ctx context.Context) {
	if err := s.refresh(ctx); err != nil {
		s.logg.Error(s.logg.WithOperation(ctx, "refresh"), "post-mutation refresh failed", err)
	}
}

func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	fetchedAt := s.version
	s.mu.Unlock()

	// Coalesce only fetches of the same state generation. A post-mutation
	// refresh carries a newer version and so never joins a flight that
	// started before the mutation.
	key := "refresh@" + strconv.FormatUint(fetchedAt, 10)
	_, err, _ := s.sfg.Do(key, func() (any, error) {
		wireItems, err := s.api.FetchCart(ctx)
		if err != nil {
			return nil, err
		}
		items := fromWireItems(wireItems)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.version != fetchedAt {
			// A mutation landed while this fetch was in flight; its own
			// refresh carries the newer state.
			s.logg.Debug(s.logg.WithOperation(ctx, "refresh"), "stale refresh discarded")
			return nil, nil
		}
		s.items = items
		return nil, nil
	})
	return err
}

func (s *Store) observe(op string, start time.Time) {
	s.metrics.ObserveDuration(op, time.Since(start))
}
