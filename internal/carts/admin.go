package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/pagination"
	"gorm.io/gorm"
)

// CartDetail is a cart with its full recovery history.
type CartDetail struct {
	Cart models.AbandonedCart `json:"cart"`
	Logs []models.RecoveryLog `json:"logs"`
}

// AdminService backs the operator cart screens.
type AdminService struct {
	carts Repository
	logs  recoverylogs.Repository
	db    txRunner
	now   func() time.Time
}

func NewAdminService(carts Repository, logs recoverylogs.Repository, db txRunner) (*AdminService, error) {
	if carts == nil || logs == nil {
		return nil, fmt.Errorf("carts and recovery log repositories required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	return &AdminService{carts: carts, logs: logs, db: db, now: time.Now}, nil
}

func (s *AdminService) List(ctx context.Context, params pagination.Params, filters ListFilters) (*CartList, error) {
	list, err := s.carts.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list carts")
	}
	return list, nil
}

func (s *AdminService) Get(ctx context.Context, id int64) (*CartDetail, error) {
	cart, err := s.findCart(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByCart(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recovery logs")
	}
	return &CartDetail{Cart: *cart, Logs: logs}, nil
}

func (s *AdminService) Delete(ctx context.Context, id int64) error {
	var deleted bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.carts.WithTx(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return nil
}

// MarkRecovered is the manual counterpart of the recovery link. Terminal carts
// are left untouched.
func (s *AdminService) MarkRecovered(ctx context.Context, id int64) error {
	if _, err := s.findCart(ctx, id); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.carts.WithTx(tx).UpdateStatus(ctx, id, enums.CartStatusRecovered,
			enums.CartStatusAbandoned, enums.CartStatusCheckout)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark recovered")
		}
		if !changed {
			return nil
		}
		entry := &models.RecoveryLog{
			CartID:  id,
			Channel: enums.RecoveryChannelLink,
			Outcome: enums.RecoveryOutcomeRecovered,
			SentAt:  s.now().UTC(),
		}
		if err := s.logs.WithTx(tx).Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record recovery")
		}
		return nil
	})
}

func (s *AdminService) findCart(ctx context.Context, id int64) (*models.AbandonedCart, error) {
	cart, err := s.carts.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}
