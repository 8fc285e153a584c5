package licenses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

const defaultReverifyInterval = 24 * time.Hour

type server interface {
	Configured() bool
	Activate(ctx context.Context, key string) (ServerResponse, error)
	Deactivate(ctx context.Context, key string) (ServerResponse, error)
	Verify(ctx context.Context, key string) (ServerResponse, error)
}

// Status is the admin view of the current license.
type Status struct {
	LicenseKey     string              `json:"license_key,omitempty"`
	Domain         string              `json:"domain,omitempty"`
	Status         enums.LicenseStatus `json:"status"`
	ExpiryDate     *time.Time          `json:"expiry_date,omitempty"`
	LastVerifiedAt *time.Time          `json:"last_verified_at,omitempty"`
	Pro            bool                `json:"pro"`
}

type ServiceParams struct {
	Repo             Repository
	Server           server
	Domain           string
	ReverifyInterval time.Duration
	Logger           *logger.Logger
	Now              func() time.Time
}

// Service activates, deactivates and re-verifies the paid tier license.
type Service struct {
	repo     Repository
	server   server
	domain   string
	interval time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.Server == nil {
		return nil, fmt.Errorf("license server client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := params.ReverifyInterval
	if interval <= 0 {
		interval = defaultReverifyInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		server:   params.Server,
		domain:   params.Domain,
		interval: interval,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Activate registers key with the license server. Only a successful reply
// is persisted; a rejection surfaces the server's message.
func (s *Service) Activate(ctx context.Context, key string) (Status, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "license key is required")
	}
	resp, err := s.server.Activate(ctx, key)
	if err != nil {
		return Status{}, err
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "license activation rejected"
		}
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, msg)
	}

	now := s.now().UTC()
	record := &models.LicenseRecord{
		LicenseKey:     key,
		Domain:         s.domain,
		Status:         enums.LicenseStatusActive,
		ExpiryDate:     resp.Expiry(),
		LastVerifiedAt: &now,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save license")
	}
	ctx = s.logg.WithField(ctx, "license_status", string(record.Status))
	s.logg.Info(ctx, "license activated")
	return s.statusOf(record), nil
}

// Deactivate tells the server to release the key and always marks the
// local record inactive, even when the server call fails.
func (s *Service) Deactivate(ctx context.Context) (Status, error) {
	record, err := s.current(ctx)
	if err != nil {
		return Status{}, err
	}
	if record == nil {
		return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "no license on file")
	}
	if s.server.Configured() {
		if _, err := s.server.Deactivate(ctx, record.LicenseKey); err != nil {
			s.logg.Warn(ctx, "license server deactivate failed: "+err.Error())
		}
	}
	record.Status = enums.LicenseStatusInactive
	if err := s.repo.Save(ctx, record); err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save license")
	}
	s.logg.Info(ctx, "license deactivated")
	return s.statusOf(record), nil
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	record, err := s.current(ctx)
	if err != nil {
		return Status{}, err
	}
	if record == nil {
		return Status{Status: enums.LicenseStatusInactive}, nil
	}
	return s.statusOf(record), nil
}

// Reverify re-checks the stored key once the interval has elapsed. It
// reports whether a server round trip happened.
func (s *Service) Reverify(ctx context.Context) (bool, error) {
	record, err := s.current(ctx)
	if err != nil {
		return false, err
	}
	if record == nil || !s.server.Configured() {
		return false, nil
	}
	now := s.now().UTC()
	if record.LastVerifiedAt != nil && now.Sub(*record.LastVerifiedAt) < s.interval {
		return false, nil
	}

	resp, err := s.server.Verify(ctx, record.LicenseKey)
	if err != nil {
		// Keep the previous status; the next run retries.
		return true, err
	}
	valid := resp.Valid == nil || *resp.Valid
	if resp.Success && valid {
		record.Status = enums.LicenseStatusActive
		if exp := resp.Expiry(); exp != nil {
			record.ExpiryDate = exp
		}
	} else {
		record.Status = enums.LicenseStatusInactive
	}
	record.LastVerifiedAt = &now
	if err := s.repo.Save(ctx, record); err != nil {
		return true, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save license")
	}
	ctx = s.logg.WithField(ctx, "license_status", string(record.Status))
	s.logg.Info(ctx, "license reverified")
	return true, nil
}

// IsPro reports whether the paid channels are unlocked.
func (s *Service) IsPro(ctx context.Context) (bool, error) {
	record, err := s.current(ctx)
	if err != nil {
		return false, err
	}
	return record != nil && record.IsActive(s.now()), nil
}

func (s *Service) current(ctx context.Context) (*models.LicenseRecord, error) {
	record, err := s.repo.Current(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load license")
	}
	return record, nil
}

func (s *Service) statusOf(record *models.LicenseRecord) Status {
	return Status{
		LicenseKey:     maskKey(record.LicenseKey),
		Domain:         record.Domain,
		Status:         record.Status,
		ExpiryDate:     record.ExpiryDate,
		LastVerifiedAt: record.LastVerifiedAt,
		Pro:            record.IsActive(s.now()),
	}
}

// maskKey keeps the last four characters.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
