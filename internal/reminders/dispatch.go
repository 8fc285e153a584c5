package reminders

import (
	"context"
	"strconv"
	"strings"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/ses"
)

// Attempt is the result of one send. Err is the transport failure, if any.
type Attempt struct {
	Outcome enums.RecoveryOutcome
	Err     error
}

func attemptOf(err error) Attempt {
	if err != nil {
		return Attempt{Outcome: enums.RecoveryOutcomeFailed, Err: err}
	}
	return Attempt{Outcome: enums.RecoveryOutcomeSent}
}

// dispatchEmail sends the stage-one recovery email. With guard set it
// refuses to mail a cart that already has a sent email entry.
func (s *Service) dispatchEmail(ctx context.Context, cart models.AbandonedCart, guard bool) (Attempt, error) {
	if guard {
		sent, err := s.logs.HasOutcome(ctx, cart.ID, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent)
		if err != nil {
			return Attempt{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sent emails")
		}
		if sent {
			s.logg.Warn(ctx, "recovery email already sent; skipping")
			s.metrics.IncSkip("duplicate_email")
			return Attempt{}, nil
		}
	}

	token, link, err := s.issueLink(ctx, cart.ID)
	if err != nil {
		return Attempt{}, err
	}

	attempt := attemptOf(s.mail(ctx, cart, s.cfg.EmailSubject, Content{
		Name:     cart.CustomerName,
		Store:    s.cfg.StoreName,
		Items:    cart.CartData,
		Currency: cart.Currency,
		Link:     link,
	}, "email"))
	if err := s.record(ctx, cart.ID, enums.RecoveryChannelEmail, attempt, token); err != nil {
		return attempt, err
	}
	return attempt, nil
}

func (s *Service) dispatchWhatsApp(ctx context.Context, cart models.AbandonedCart) (Attempt, error) {
	_, link, err := s.issueLink(ctx, cart.ID)
	if err != nil {
		return Attempt{}, err
	}

	var send func(ctx context.Context) error
	if s.waTpl.Name != "" {
		components := templateComponents(cart.CustomerName, s.cfg.StoreName, link)
		send = func(ctx context.Context) error {
			_, err := s.whatsapp.SendTemplate(ctx, cart.Phone, s.waTpl.Name, s.waTpl.Language, components)
			return err
		}
	} else {
		body, err := s.templates.WhatsApp(Content{
			Name:     cart.CustomerName,
			Store:    s.cfg.StoreName,
			Items:    cart.CartData,
			Currency: cart.Currency,
			Link:     link,
		})
		if err != nil {
			return s.recordWhatsApp(ctx, cart.ID, attemptOf(err))
		}
		send = func(ctx context.Context) error {
			_, err := s.whatsapp.SendText(ctx, cart.Phone, body)
			return err
		}
	}
	return s.recordWhatsApp(ctx, cart.ID, attemptOf(s.whatsappBreaker.Do(ctx, send)))
}

func (s *Service) recordWhatsApp(ctx context.Context, cartID int64, attempt Attempt) (Attempt, error) {
	if err := s.record(ctx, cartID, enums.RecoveryChannelWhatsApp, attempt, ""); err != nil {
		return attempt, err
	}
	return attempt, nil
}

// templateComponents fills the body parameters of the reminder template.
func templateComponents(name, store, link string) []any {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	text := func(v string) map[string]any { return map[string]any{"type": "text", "text": v} }
	return []any{map[string]any{
		"type":       "body",
		"parameters": []any{text(name), text(store), text(link)},
	}}
}

// dispatchCoupon issues a single-use coupon and mails it with a fresh
// recovery link. The coupon entry carries the code only once mailed.
func (s *Service) dispatchCoupon(ctx context.Context, cart models.AbandonedCart) (Attempt, error) {
	coupon, err := s.coupons.Issue(ctx, cart.ID)
	if err != nil {
		attempt := attemptOf(err)
		if recErr := s.record(ctx, cart.ID, enums.RecoveryChannelCoupon, attempt, ""); recErr != nil {
			return attempt, recErr
		}
		return attempt, nil
	}

	_, link, err := s.issueLink(ctx, cart.ID)
	if err != nil {
		return Attempt{}, err
	}

	attempt := attemptOf(s.mail(ctx, cart, s.cfg.CouponSubject, Content{
		Name:     cart.CustomerName,
		Store:    s.cfg.StoreName,
		Items:    cart.CartData,
		Currency: cart.Currency,
		Link:     link,
		Coupon:   coupon,
	}, "coupon"))
	token := ""
	if attempt.Err == nil {
		token = coupon.Code
	}
	if err := s.record(ctx, cart.ID, enums.RecoveryChannelCoupon, attempt, token); err != nil {
		return attempt, err
	}
	return attempt, nil
}

// issueLink mints a recovery token and persists it as a generated link.
func (s *Service) issueLink(ctx context.Context, cartID int64) (string, string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate recovery token")
	}
	entry := &models.RecoveryLog{
		CartID:  cartID,
		Channel: enums.RecoveryChannelLink,
		Outcome: enums.RecoveryOutcomeGenerated,
		Token:   token,
		SentAt:  s.now().UTC(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record recovery link")
	}
	return token, RecoveryLink(s.publicURL, token, cartID), nil
}

func (s *Service) mail(ctx context.Context, cart models.AbandonedCart, subject string, content Content, stage string) error {
	rendered, err := s.templates.Email(content)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render reminder email")
	}
	_, err = s.send(ctx, ses.Message{
		To:      cart.Email,
		Subject: subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		Tags: map[string]string{
			"cart_id": strconv.FormatInt(cart.ID, 10),
			"stage":   stage,
		},
	})
	return err
}

func (s *Service) send(ctx context.Context, msg ses.Message) (string, error) {
	var messageID string
	err := s.emailBreaker.Do(ctx, func(ctx context.Context) error {
		id, err := s.email.Send(ctx, msg)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	})
	return messageID, err
}

// record appends the channel entry for attempt. It always runs, including
// after a failed send.
func (s *Service) record(ctx context.Context, cartID int64, channel enums.RecoveryChannel, attempt Attempt, token string) error {
	if attempt.Err != nil {
		s.logg.Error(ctx, "reminder send failed", attempt.Err)
	}
	s.metrics.IncDispatch(channel.String(), attempt.Outcome.String())
	entry := &models.RecoveryLog{
		CartID:  cartID,
		Channel: channel,
		Outcome: attempt.Outcome,
		Token:   token,
		SentAt:  s.now().UTC(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record "+channel.String()+" reminder")
	}
	return nil
}
