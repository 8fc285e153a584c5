package reminders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/orders"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/pkg/circuitbreaker"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/metrics"
	"github.com/angelmondragon/recovero-backend/pkg/security"
	"github.com/angelmondragon/recovero-backend/pkg/ses"
	"github.com/angelmondragon/recovero-backend/pkg/types"
)

const (
	// TokenParam and CartParam are the query parameters of a recovery link.
	TokenParam = "recovero_token"
	CartParam  = "recovero_cart"

	leaseGrace = 24 * time.Hour
)

type EmailSender interface {
	Send(ctx context.Context, msg ses.Message) (string, error)
}

type WhatsAppSender interface {
	SendText(ctx context.Context, phone, body string) (map[string]any, error)
	SendTemplate(ctx context.Context, phone, name, language string, components []any) (map[string]any, error)
}

// WhatsAppTemplate selects template messages for the whatsapp stage. An
// empty Name sends the rendered text body instead.
type WhatsAppTemplate struct {
	Name     string
	Language string
}

type CouponIssuer interface {
	Issue(ctx context.Context, cartID int64) (*models.RecoveryCoupon, error)
}

// LeaseStore grants the per (cart, stage, window) dispatch lease.
type LeaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReminderLeaseKey(cartID int64, stage int, windowStart time.Time) string
}

type ServiceParams struct {
	Carts     carts.Repository
	Logs      recoverylogs.Repository
	Orders    orders.Repository
	Coupons   CouponIssuer
	Email     EmailSender
	WhatsApp  WhatsAppSender
	Leases    LeaseStore
	Templates *Templates
	// WhatsAppTemplate is optional.
	WhatsAppTemplate WhatsAppTemplate
	Recovery  config.RecoveryConfig
	PublicURL string
	Metrics   *metrics.ReminderMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service plans and dispatches reminders for individual carts.
type Service struct {
	carts     carts.Repository
	logs      recoverylogs.Repository
	orders    orders.Repository
	coupons   CouponIssuer
	email     EmailSender
	whatsapp  WhatsAppSender
	waTpl     WhatsAppTemplate
	leases    LeaseStore
	templates *Templates
	cfg       config.RecoveryConfig
	publicURL string
	metrics   *metrics.ReminderMetrics
	logg      *logger.Logger
	now       func() time.Time

	emailBreaker    *circuitbreaker.Breaker
	whatsappBreaker *circuitbreaker.Breaker

	newToken func() (string, error)
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if params.Logs == nil {
		return nil, fmt.Errorf("recovery log repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon issuer required")
	}
	if params.Email == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if params.WhatsApp == nil {
		return nil, fmt.Errorf("whatsapp sender required")
	}
	if params.Leases == nil {
		return nil, fmt.Errorf("lease store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(params.PublicURL) == "" {
		return nil, fmt.Errorf("public url required")
	}
	templates := params.Templates
	if templates == nil {
		var err error
		templates, err = NewTemplates()
		if err != nil {
			return nil, err
		}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		carts:           params.Carts,
		logs:            params.Logs,
		orders:          params.Orders,
		coupons:         params.Coupons,
		email:           params.Email,
		whatsapp:        params.WhatsApp,
		waTpl:           params.WhatsAppTemplate,
		leases:          params.Leases,
		templates:       templates,
		cfg:             params.Recovery,
		publicURL:       strings.TrimRight(params.PublicURL, "/"),
		metrics:         params.Metrics,
		logg:            params.Logger,
		now:             now,
		emailBreaker:    circuitbreaker.New(circuitbreaker.DefaultConfig("ses"), params.Logger),
		whatsappBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("whatsapp"), params.Logger),
		newToken:        security.NewRecoveryToken,
	}, nil
}

// ProcessCart runs one scheduler step for cart and returns the plan that
// was acted on. Send failures are recorded as failed log entries and are
// not returned; errors mean the cart's state could not be read or written.
func (s *Service) ProcessCart(ctx context.Context, cart models.AbandonedCart, opts Options) (Decision, error) {
	ctx = s.logg.WithCartID(ctx, cart.ID)

	history, err := s.logs.ListByCart(ctx, cart.ID)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recovery logs")
	}
	progress := DeriveStage(cart.CreatedAt, history)

	if !cart.Status.IsTerminal() {
		done, err := s.completedElsewhere(ctx, cart)
		if err != nil {
			return Decision{}, err
		}
		if done {
			s.metrics.IncSkip(string(SkipCompleted))
			return skip(SkipCompleted), nil
		}
	}

	now := s.now().UTC()
	decision := Plan(cart, progress, s.cfg, opts, now)
	if !decision.Send {
		s.metrics.IncSkip(string(decision.Reason))
		return decision, nil
	}

	key := s.leases.ReminderLeaseKey(cart.ID, int(decision.Stage), progress.LastEventAt)
	acquired, err := s.leases.SetNX(ctx, key, uuid.NewString(), s.cfg.MaxCartAge()+leaseGrace)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reminder lease")
	}
	if !acquired {
		s.metrics.IncSkip(string(SkipLeaseHeld))
		return skip(SkipLeaseHeld), nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"stage":   decision.Stage.String(),
		"channel": decision.Channel.String(),
	})
	switch decision.Channel {
	case enums.RecoveryChannelEmail:
		_, err = s.dispatchEmail(ctx, cart, true)
	case enums.RecoveryChannelWhatsApp:
		_, err = s.dispatchWhatsApp(ctx, cart)
	case enums.RecoveryChannelCoupon:
		_, err = s.dispatchCoupon(ctx, cart)
	default:
		err = pkgerrors.New(pkgerrors.CodeInternal, "unsupported reminder channel")
	}
	return decision, err
}

// completedElsewhere marks the cart completed when its owner has finished
// an order since the cart was created.
func (s *Service) completedElsewhere(ctx context.Context, cart models.AbandonedCart) (bool, error) {
	owner := orders.Owner{UserID: cart.UserID, Email: cart.Email, Phone: cart.Phone}
	done, err := s.orders.HasCompletedSince(ctx, owner, cart.CreatedAt)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check completed orders")
	}
	if !done {
		return false, nil
	}
	if _, err := s.carts.UpdateStatus(ctx, cart.ID, enums.CartStatusCompleted, enums.CartStatusAbandoned, enums.CartStatusCheckout); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart completed")
	}
	s.logg.Info(ctx, "cart owner completed an order; reminders stopped")
	return true, nil
}

// Resend mails the recovery email for cartID now, ignoring stage delays.
func (s *Service) Resend(ctx context.Context, cartID int64) error {
	cart, err := s.carts.FindByID(ctx, cartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already "+cart.Status.String())
	}
	if strings.TrimSpace(cart.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart has no email address")
	}
	ctx = s.logg.WithCartID(ctx, cart.ID)

	// Same lease as the tick, so a resend racing a scheduled send mails once.
	history, err := s.logs.ListByCart(ctx, cart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recovery logs")
	}
	progress := DeriveStage(cart.CreatedAt, history)
	key := s.leases.ReminderLeaseKey(cart.ID, int(progress.Stage), progress.LastEventAt)
	acquired, err := s.leases.SetNX(ctx, key, uuid.NewString(), s.cfg.MaxCartAge()+leaseGrace)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reminder lease")
	}
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "a reminder for this cart is already being sent")
	}

	attempt, err := s.dispatchEmail(ctx, *cart, false)
	if err != nil {
		return err
	}
	if attempt.Err != nil {
		if pkgerrors.As(attempt.Err) != nil {
			return attempt.Err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, attempt.Err, "send recovery email")
	}
	return nil
}

// SendTestEmail renders the recovery email with sample content and mails it to to.
func (s *Service) SendTestEmail(ctx context.Context, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	rendered, err := s.templates.Email(Content{
		Name:     "Test",
		Store:    s.cfg.StoreName,
		Currency: "USD",
		Link:     s.publicURL,
		Items: types.LineItems{
			{ProductID: 1, Name: "Sample product", Quantity: 2, Price: decimal.RequireFromString("19.99")},
			{ProductID: 2, Name: "Another product", Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render test email")
	}
	_, err = s.send(ctx, ses.Message{
		To:      to,
		Subject: "[Test] " + s.cfg.EmailSubject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		Tags:    map[string]string{"kind": "test"},
	})
	return err
}

// RecoveryLink builds the storefront URL that resolves token for cartID.
func RecoveryLink(base, token string, cartID int64) string {
	query := url.Values{}
	query.Set(TokenParam, token)
	query.Set(CartParam, strconv.FormatInt(cartID, 10))
	return strings.TrimRight(base, "/") + "/?" + query.Encode()
}
