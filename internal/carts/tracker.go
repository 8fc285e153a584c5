package carts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/internal/orders"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

// Tracker records storefront cart lifecycle events.
type Tracker interface {
	OnCartChanged(ctx context.Context, event CartChangedEvent) (*models.AbandonedCart, error)
	OnCheckoutStarted(ctx context.Context, event CheckoutEvent) (*models.AbandonedCart, error)
	OnOrderCompleted(ctx context.Context, event OrderCompletedEvent) (*models.AbandonedCart, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type TrackerParams struct {
	Carts  Repository
	Logs   recoverylogs.Repository
	Orders orders.Repository
	DB     txRunner
	Config config.RecoveryConfig
	Logger *logger.Logger
	Now    func() time.Time
}

type tracker struct {
	carts   Repository
	logs    recoverylogs.Repository
	orders  orders.Repository
	db      txRunner
	enabled bool
	logg    *logger.Logger
	now     func() time.Time
}

func NewTracker(params TrackerParams) (Tracker, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if params.Logs == nil {
		return nil, fmt.Errorf("recovery log repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &tracker{
		carts:   params.Carts,
		logs:    params.Logs,
		orders:  params.Orders,
		db:      params.DB,
		enabled: params.Config.TrackingEnabled,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// OnCartChanged upserts the session's snapshot. It returns nil when nothing
// was stored (tracking disabled, or an empty cart that was never tracked).
func (t *tracker) OnCartChanged(ctx context.Context, event CartChangedEvent) (*models.AbandonedCart, error) {
	if !t.enabled {
		return nil, nil
	}
	sessionID := strings.TrimSpace(event.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}
	for i, item := range event.Items {
		if err := item.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid line item %d", i))
		}
	}

	var result *models.AbandonedCart
	err := t.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := t.carts.WithTx(tx)
		cart, err := repo.FindBySession(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if cart != nil && cart.Status == enums.CartStatusCompleted {
			if len(event.Items) == 0 {
				result = cart
				return nil
			}
			// The completed snapshot keeps its history; the session starts a new one.
			if err := repo.DetachSession(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach completed cart")
			}
			cart = nil
		}

		if cart == nil {
			if len(event.Items) == 0 {
				return nil
			}
			fresh := &models.AbandonedCart{
				SessionID: &sessionID,
				Status:    enums.CartStatusAbandoned,
				Currency:  defaultCurrency,
				CreatedAt: t.now().UTC(),
			}
			applySnapshot(fresh, event)
			if err := repo.Create(ctx, fresh); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
			}
			result = fresh
			return nil
		}

		applySnapshot(cart, event)
		if cart.Status == enums.CartStatusCheckout {
			cart.Status = enums.CartStatusAbandoned
		}
		cart.UpdatedAt = t.now().UTC()
		if err := repo.Save(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OnCheckoutStarted marks a non-terminal cart as in checkout.
func (t *tracker) OnCheckoutStarted(ctx context.Context, event CheckoutEvent) (*models.AbandonedCart, error) {
	if !t.enabled {
		return nil, nil
	}
	cart, err := t.carts.FindBySession(ctx, strings.TrimSpace(event.SessionID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil || cart.Status.IsTerminal() {
		return cart, nil
	}
	applyContact(cart, event.Contact)
	cart.Status = enums.CartStatusCheckout
	cart.UpdatedAt = t.now().UTC()
	if err := t.carts.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

// OnOrderCompleted records the order and completes the session's cart. A
// recovered cart gets an order/recovered entry so attribution survives.
func (t *tracker) OnOrderCompleted(ctx context.Context, event OrderCompletedEvent) (*models.AbandonedCart, error) {
	orderRef := strings.TrimSpace(event.OrderRef)
	if orderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_ref is required")
	}
	completedAt := event.CompletedAt.UTC()
	if event.CompletedAt.IsZero() {
		completedAt = t.now().UTC()
	}

	var result *models.AbandonedCart
	err := t.db.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := t.carts.WithTx(tx)
		cart, err := cartRepo.FindBySession(ctx, strings.TrimSpace(event.SessionID))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		order := &models.CustomerOrder{
			OrderRef:    orderRef,
			SessionID:   strings.TrimSpace(event.SessionID),
			UserID:      event.UserID,
			Email:       strings.TrimSpace(event.Email),
			Phone:       strings.TrimSpace(event.Phone),
			CompletedAt: completedAt,
		}
		if cart != nil {
			order.CartID = &cart.ID
			order.Email = coalesce(cart.Email, order.Email)
			order.Phone = coalesce(cart.Phone, order.Phone)
			if order.UserID == nil {
				order.UserID = cart.UserID
			}
		}
		if _, err := t.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order")
		}

		if cart == nil || cart.Status == enums.CartStatusCompleted {
			result = cart
			return nil
		}

		wasRecovered := cart.Status == enums.CartStatusRecovered
		if _, err := cartRepo.UpdateStatus(ctx, cart.ID, enums.CartStatusCompleted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete cart")
		}
		if wasRecovered {
			entry := &models.RecoveryLog{
				CartID:  cart.ID,
				Channel: enums.RecoveryChannelOrder,
				Outcome: enums.RecoveryOutcomeRecovered,
				SentAt:  completedAt,
			}
			if err := t.logs.WithTx(tx).Create(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record recovered order")
			}
		}
		cart.Status = enums.CartStatusCompleted
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		t.logg.Info(t.logg.WithFields(ctx, map[string]any{"cart_id": result.ID, "order_ref": orderRef}), "order completed")
	}
	return result, nil
}

func applySnapshot(cart *models.AbandonedCart, event CartChangedEvent) {
	cart.CartData = event.Items
	cart.CartTotal = event.Items.Total()
	if cur := strings.ToUpper(strings.TrimSpace(event.Currency)); cur != "" {
		cart.Currency = cur
	}
	cart.IPAddress = coalesce(cart.IPAddress, event.IPAddress)
	cart.UserAgent = coalesce(cart.UserAgent, event.UserAgent)
	cart.Location = coalesce(cart.Location, event.Location)
	applyContact(cart, event.Contact)
}

func applyContact(cart *models.AbandonedCart, c Contact) {
	if c.UserID != nil && *c.UserID > 0 {
		id := *c.UserID
		cart.UserID = &id
	}
	cart.Email = coalesce(cart.Email, c.Email)
	cart.Phone = coalesce(cart.Phone, c.Phone)
	cart.CustomerName = coalesce(cart.CustomerName, c.CustomerName)
	cart.BillingAddress = coalesce(cart.BillingAddress, c.BillingAddress)
	cart.BillingCity = coalesce(cart.BillingCity, c.BillingCity)
	cart.BillingCountry = coalesce(cart.BillingCountry, c.BillingCountry)
	cart.BillingPostcode = coalesce(cart.BillingPostcode, c.BillingPostcode)
}

// coalesce keeps current unless next carries a value.
func coalesce(current, next string) string {
	if trimmed := strings.TrimSpace(next); trimmed != "" {
		return trimmed
	}
	return current
}
