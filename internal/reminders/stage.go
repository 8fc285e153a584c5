package reminders

import (
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
)

// Stage is the number of reminders a cart has successfully received.
type Stage int

const (
	StageNone Stage = iota
	StageEmail
	StageWhatsApp
	StageCoupon
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageEmail:
		return "email"
	case StageWhatsApp:
		return "whatsapp"
	case StageCoupon:
		return "coupon"
	default:
		return "unknown"
	}
}

// Progress is the reminder state derived from a cart's log history.
type Progress struct {
	Stage       Stage
	LastEventAt time.Time
}

// DeriveStage replays logs, which must be in (sent_at, id) order, and
// returns the reached stage plus the time of the latest reminder attempt.
// Only email, whatsapp and coupon entries are considered; a sent entry only
// advances the stage when it is the next one in sequence.
func DeriveStage(created time.Time, logs []models.RecoveryLog) Progress {
	progress := Progress{Stage: StageNone, LastEventAt: created}
	for _, entry := range logs {
		if !entry.Channel.IsReminder() {
			continue
		}
		progress.LastEventAt = entry.SentAt
		if entry.Outcome != enums.RecoveryOutcomeSent {
			continue
		}
		if next, ok := nextStage(progress.Stage, entry.Channel); ok {
			progress.Stage = next
		}
	}
	return progress
}

func nextStage(current Stage, channel enums.RecoveryChannel) (Stage, bool) {
	switch {
	case current == StageNone && channel == enums.RecoveryChannelEmail:
		return StageEmail, true
	case current == StageEmail && channel == enums.RecoveryChannelWhatsApp:
		return StageWhatsApp, true
	case current == StageWhatsApp && channel == enums.RecoveryChannelCoupon:
		return StageCoupon, true
	}
	return current, false
}
