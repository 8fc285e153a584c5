package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/redis"
	"github.com/angelmondragon/recovero-backend/pkg/types"
)

// DefaultSessionCartTTL bounds how long restored contents wait for the storefront.
const DefaultSessionCartTTL = 48 * time.Hour

// SessionContact is the checkout contact put back into the session with the
// items. Fields the cart never learned stay empty.
type SessionContact struct {
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Name            string `json:"name,omitempty"`
	BillingAddress  string `json:"billing_address,omitempty"`
	BillingCity     string `json:"billing_city,omitempty"`
	BillingCountry  string `json:"billing_country,omitempty"`
	BillingPostcode string `json:"billing_postcode,omitempty"`
}

// SessionCart is what a recovery visit writes into the shopper's session.
type SessionCart struct {
	Items   types.LineItems `json:"items"`
	Contact SessionContact  `json:"contact"`
}

// SessionCartFrom snapshots the stored cart for the session.
func SessionCartFrom(cart models.AbandonedCart) SessionCart {
	items := cart.CartData
	if items == nil {
		items = types.LineItems{}
	}
	return SessionCart{
		Items: items,
		Contact: SessionContact{
			Email:           cart.Email,
			Phone:           cart.Phone,
			Name:            cart.CustomerName,
			BillingAddress:  cart.BillingAddress,
			BillingCity:     cart.BillingCity,
			BillingCountry:  cart.BillingCountry,
			BillingPostcode: cart.BillingPostcode,
		},
	}
}

// SessionCarts holds the live shopping-session cart the storefront reads.
type SessionCarts interface {
	Replace(ctx context.Context, sessionID string, cart SessionCart) error
	Get(ctx context.Context, sessionID string) (*SessionCart, error)
}

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SessionCartKey(sessionID string) string
}

type redisSessionCarts struct {
	store sessionStore
	ttl   time.Duration
}

func NewRedisSessionCarts(store *redis.Client, ttl time.Duration) SessionCarts {
	if ttl <= 0 {
		ttl = DefaultSessionCartTTL
	}
	return &redisSessionCarts{store: store, ttl: ttl}
}

// Replace overwrites the session cart, so writing the same cart twice leaves
// one copy of its items.
func (s *redisSessionCarts) Replace(ctx context.Context, sessionID string, cart SessionCart) error {
	if sessionID == "" {
		return fmt.Errorf("session id required")
	}
	if cart.Items == nil {
		cart.Items = types.LineItems{}
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.store.SessionCartKey(sessionID), payload, s.ttl)
}

// Get returns nil, nil when the session has no restored cart.
func (s *redisSessionCarts) Get(ctx context.Context, sessionID string) (*SessionCart, error) {
	raw, err := s.store.Get(ctx, s.store.SessionCartKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cart SessionCart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
