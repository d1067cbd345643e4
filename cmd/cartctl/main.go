// cartctl drives the storefront cart from the command line. It exercises the
// full client stack: session login, guest cart, optimistic mutations, and
// checkout summaries.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/api"
	"github.com/angelmondragon/storefront-client/internal/cart"
	"github.com/angelmondragon/storefront-client/internal/guestcart"
	"github.com/angelmondragon/storefront-client/internal/retry"
	"github.com/angelmondragon/storefront-client/internal/session"
	"github.com/angelmondragon/storefront-client/pkg/config"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/metrics"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

const usage = `usage: cartctl <command> [flags]

commands:
  login <token>    establish a session and merge the guest cart
  logout           end the session and clear the local cart
  show             print the current cart and totals
  add              add an item (-product, -qty, -offer, -offer-type)
  update           change a quantity (-product, -offer, -qty)
  remove           remove an item (-product, -offer)
  clear            empty the cart
  validate         re-check item availability
  summary          print totals only
  checkout-payload print the order-creation payload as JSON
`

type app struct {
	cfg      *config.Config
	logg     *logger.Logger
	sessions *session.Manager
	client   *api.Client
	store    *cart.Store
	guest    *guestcart.Cart
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "cartctl"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	a, cleanup, err := buildApp(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "cartctl: %v\n", err)
		os.Exit(1)
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*app, func(), error) {
	cleanup := func() {}

	var tokenStore session.TokenStore
	var guestBackend guestcart.Backend
	if cfg.Redis.Enabled() {
		redisTokens, err := session.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, cleanup, fmt.Errorf("bootstrap redis token store: %w", err)
		}
		redisGuest, err := guestcart.NewRedisBackend(ctx, cfg.Redis)
		if err != nil {
			return nil, cleanup, fmt.Errorf("bootstrap redis guest cart: %w", err)
		}
		cleanup = func() {
			if err := redisTokens.Close(); err != nil {
				logg.Error(ctx, "error closing redis token store", err)
			}
			if err := redisGuest.Close(); err != nil {
				logg.Error(ctx, "error closing redis guest cart", err)
			}
		}
		tokenStore = redisTokens
		guestBackend = redisGuest
	} else {
		logg.Warn(ctx, "redis not configured, state will not survive this invocation")
		tokenStore = session.NewMemoryStore()
		guestBackend = guestcart.NewMemoryBackend()
	}

	sessions, err := session.NewManager(tokenStore, cfg.Session, logg)
	if err != nil {
		return nil, cleanup, err
	}

	client, err := api.NewClient(cfg.API, sessions, logg)
	if err != nil {
		return nil, cleanup, err
	}

	cartMetrics := metrics.NewCartMetrics(prometheus.NewRegistry())

	executor, err := retry.NewExecutor(cfg.Retry, logg, cartMetrics)
	if err != nil {
		return nil, cleanup, err
	}

	shippingFee, err := decimal.NewFromString(cfg.Cart.ShippingFee)
	if err != nil {
		return nil, cleanup, fmt.Errorf("parsing shipping fee: %w", err)
	}

	store, err := cart.NewStore(cart.StoreParams{
		API:         client,
		Sessions:    sessions,
		Retry:       executor,
		Logger:      logg,
		Metrics:     cartMetrics,
		ShippingFee: shippingFee,
	})
	if err != nil {
		return nil, cleanup, err
	}

	guest, err := guestcart.New(guestBackend, logg)
	if err != nil {
		return nil, cleanup, err
	}

	return &app{
		cfg:      cfg,
		logg:     logg,
		sessions: sessions,
		client:   client,
		store:    store,
		guest:    guest,
	}, cleanup, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.sessions.Logout(ctx)
	case "show":
		return a.show(ctx)
	case "add":
		return a.add(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "remove":
		return a.remove(ctx, args)
	case "clear":
		return a.clear(ctx)
	case "validate":
		return a.validate(ctx)
	case "summary":
		return a.summary(ctx)
	case "checkout-payload":
		return a.checkoutPayload(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("login requires exactly one token argument")
	}

	sess, err := a.sessions.Login(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", sess.UserID)

	if err := a.guest.MergeInto(ctx, a.client); err != nil {
		// The guest cart stays intact; the next login retries the merge.
		fmt.Printf("guest cart merge failed: %v\n", err)
	}

	if result := a.store.Refresh(ctx); !result.Success {
		fmt.Printf("cart refresh failed: %s\n", result.Error)
	}
	return nil
}

func (a *app) loggedIn(ctx context.Context) (bool, error) {
	sess, err := a.sessions.Current(ctx)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

func (a *app) show(ctx context.Context) error {
	authed, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}

	var snap cart.Snapshot
	var summary cart.Summary
	if authed {
		if result := a.store.Refresh(ctx); !result.Success {
			return fmt.Errorf("%s", result.Error)
		}
		snap = a.store.Snapshot()
		summary = a.store.Summary()
	} else {
		snap, err = a.guest.Snapshot(ctx)
		if err != nil {
			return err
		}
		summary, err = a.guestSummary(snap)
		if err != nil {
			return err
		}
		fmt.Println("(guest cart, login to sync)")
	}

	printCart(snap, summary)
	return nil
}

func (a *app) guestSummary(snap cart.Snapshot) (cart.Summary, error) {
	shippingFee, err := decimal.NewFromString(a.cfg.Cart.ShippingFee)
	if err != nil {
		return cart.Summary{}, fmt.Errorf("parsing shipping fee: %w", err)
	}
	return snap.Summarize(shippingFee), nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	product := fs.String("product", "", "product id")
	qty := fs.Int("qty", 1, "quantity")
	offer := fs.String("offer", "", "offer id")
	offerType := fs.String("offer-type", "", "offer type (bogo, flat_discount, percentage_discount)")
	price := fs.String("price", "0", "unit price, guest cart only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *product == "" {
		return fmt.Errorf("-product is required")
	}

	authed, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !authed {
		unitPrice, err := decimal.NewFromString(*price)
		if err != nil {
			return fmt.Errorf("parsing price: %w", err)
		}
		if err := a.guest.Add(ctx, guestcart.AddInput{
			ProductID: *product,
			OfferID:   *offer,
			OfferType: types.OfferType(*offerType),
			Quantity:  *qty,
			UnitPrice: unitPrice,
		}); err != nil {
			return err
		}
		fmt.Println("added to guest cart")
		return nil
	}

	result := a.store.Add(ctx, cart.AddInput{
		ProductID: *product,
		OfferID:   *offer,
		OfferType: types.OfferType(*offerType),
		Quantity:  *qty,
	})
	return printResult(result)
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	product := fs.String("product", "", "product id")
	offer := fs.String("offer", "", "offer id")
	qty := fs.Int("qty", 1, "quantity, 0 removes the item")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *product == "" {
		return fmt.Errorf("-product is required")
	}

	authed, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !authed {
		if err := a.guest.Update(ctx, *product, *offer, *qty); err != nil {
			return err
		}
		fmt.Println("guest cart updated")
		return nil
	}

	return printResult(a.store.Update(ctx, *product, *offer, *qty))
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	product := fs.String("product", "", "product id")
	offer := fs.String("offer", "", "offer id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *product == "" {
		return fmt.Errorf("-product is required")
	}

	authed, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !authed {
		if err := a.guest.Remove(ctx, *product, *offer); err != nil {
			return err
		}
		fmt.Println("removed from guest cart")
		return nil
	}

	return printResult(a.store.Remove(ctx, *product, *offer))
}

func (a *app) clear(ctx context.Context) error {
	authed, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !authed {
		if err := a.guest.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("guest cart cleared")
		return nil
	}
	return printResult(a.store.Clear(ctx))
}

func (a *app) validate(ctx context.Context) error {
	result := a.store.Validate(ctx)
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	fmt.Println("all items available")
	return nil
}

func (a *app) currentSnapshot(ctx context.Context) (cart.Snapshot, error) {
	authed, err := a.loggedIn(ctx)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if !authed {
		return a.guest.Snapshot(ctx)
	}
	if result := a.store.Refresh(ctx); !result.Success {
		return cart.Snapshot{}, fmt.Errorf("%s", result.Error)
	}
	return a.store.Snapshot(), nil
}

func (a *app) summary(ctx context.Context) error {
	authed, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}

	var summary cart.Summary
	if authed {
		if result := a.store.Refresh(ctx); !result.Success {
			return fmt.Errorf("%s", result.Error)
		}
		summary = a.store.Summary()
	} else {
		snap, err := a.guest.Snapshot(ctx)
		if err != nil {
			return err
		}
		summary, err = a.guestSummary(snap)
		if err != nil {
			return err
		}
	}

	fmt.Printf("subtotal: %s\nshipping: %s\ntotal:    %s (%d items)\n",
		summary.Subtotal, summary.Shipping, summary.Total, summary.ItemCount)
	return nil
}

func (a *app) checkoutPayload(ctx context.Context) error {
	snap, err := a.currentSnapshot(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(snap.CheckoutPayload(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkout payload: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func printResult(result cart.Result) error {
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	return nil
}

func printCart(snap cart.Snapshot, summary cart.Summary) {
	if len(snap.Items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, item := range snap.Items {
		line := fmt.Sprintf("  %s x%d @ %s", item.ProductID, item.Quantity, item.EffectivePrice())
		if item.Name != "" {
			line += " (" + item.Name + ")"
		}
		if item.OfferID != "" {
			line += " [offer " + item.OfferID + "]"
		}
		fmt.Println(line)
	}
	fmt.Printf("subtotal: %s\n", summary.Subtotal)
	if savings := snap.TotalSavings(); !savings.IsZero() {
		fmt.Printf("savings:  %s\n", savings)
	}
	fmt.Printf("shipping: %s\n", summary.Shipping)
	fmt.Printf("total:    %s (%d items)\n", summary.Total, summary.ItemCount)
}
