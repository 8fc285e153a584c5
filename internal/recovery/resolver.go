package recovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

// Request is an inbound recovery link visit. CartID is advisory; the token
// alone identifies the cart.
type Request struct {
	Token     string
	CartID    int64
	SessionID string
}

// Result describes what a visit did. A zero Result means the token was
// unknown and nothing happened.
type Result struct {
	CartID int64
	// Recovered is true only for the visit that moved the cart to recovered.
	Recovered bool
	// Restored is true when the items and contact were written to the session.
	Restored bool
	Status   enums.CartStatus
}

type Resolver interface {
	Resolve(ctx context.Context, req Request) (Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ResolverParams struct {
	Carts    carts.Repository
	Logs     recoverylogs.Repository
	Sessions SessionCarts
	DB       txRunner
	Logger   *logger.Logger
	Now      func() time.Time
}

type resolver struct {
	carts    carts.Repository
	logs     recoverylogs.Repository
	sessions SessionCarts
	db       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewResolver(params ResolverParams) (Resolver, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if params.Logs == nil {
		return nil, fmt.Errorf("recovery log repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session cart store required")
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
	return &resolver{
		carts:    params.Carts,
		logs:     params.Logs,
		sessions: params.Sessions,
		db:       params.DB,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (r *resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return Result{}, nil
	}
	entry, err := r.logs.FindByToken(ctx, token)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup recovery token")
	}
	if entry == nil {
		return Result{}, nil
	}
	ctx = r.logg.WithCartID(ctx, entry.CartID)
	if req.CartID != 0 && req.CartID != entry.CartID {
		r.logg.Warn(r.logg.WithField(ctx, "advisory_cart_id", strconv.FormatInt(req.CartID, 10)), "recovery link cart id does not match token; using token")
	}

	cart, err := r.carts.FindByID(ctx, entry.CartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	result := Result{CartID: cart.ID, Status: cart.Status}
	if cart.Status == enums.CartStatusRecovered {
		return r.repair(ctx, req, *cart, result), nil
	}
	if cart.Status.IsTerminal() {
		return result, nil
	}

	err = r.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := r.carts.WithTx(tx).UpdateStatus(ctx, cart.ID, enums.CartStatusRecovered, enums.CartStatusAbandoned, enums.CartStatusCheckout)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		result.Recovered = true
		return r.logs.WithTx(tx).Create(ctx, &models.RecoveryLog{
			CartID:  cart.ID,
			Channel: enums.RecoveryChannelLink,
			Outcome: enums.RecoveryOutcomeRecovered,
			SentAt:  r.now().UTC(),
		})
	})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart recovered")
	}
	if !result.Recovered {
		return result, nil
	}
	result.Status = enums.CartStatusRecovered
	r.logg.Info(ctx, "cart recovered from link")
	return r.restore(ctx, req, *cart, result), nil
}

// repair restores a recovered cart into a session that holds nothing yet, so a
// write that failed on the resolving visit is redone by the next one. A
// session that already has a cart keeps what the shopper built since.
func (r *resolver) repair(ctx context.Context, req Request, cart models.AbandonedCart, result Result) Result {
	if req.SessionID == "" {
		return result
	}
	current, err := r.sessions.Get(ctx, req.SessionID)
	if err != nil {
		r.logg.Error(ctx, "read session cart", err)
		return result
	}
	if current != nil {
		return result
	}
	return r.restore(ctx, req, cart, result)
}

// restore writes the cart into the visitor's session. A failed write is
// logged and left for the next visit.
func (r *resolver) restore(ctx context.Context, req Request, cart models.AbandonedCart, result Result) Result {
	if req.SessionID == "" {
		return result
	}
	if err := r.sessions.Replace(ctx, req.SessionID, SessionCartFrom(cart)); err != nil {
		r.logg.Error(ctx, "restore session cart", err)
		return result
	}
	result.Restored = true
	return result
}
