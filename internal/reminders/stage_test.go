package reminders

import (
	"testing"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
)

func entry(channel enums.RecoveryChannel, outcome enums.RecoveryOutcome, at time.Time) models.RecoveryLog {
	return models.RecoveryLog{Channel: channel, Outcome: outcome, SentAt: at}
}

func TestDeriveStage(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return created.Add(time.Duration(n) * time.Hour) }

	tests := []struct {
		name      string
		logs      []models.RecoveryLog
		wantStage Stage
		wantLast  time.Time
	}{
		{
			name:      "no history",
			wantStage: StageNone,
			wantLast:  created,
		},
		{
			name: "full progression",
			logs: []models.RecoveryLog{
				entry(enums.RecoveryChannelLink, enums.RecoveryOutcomeGenerated, h(1)),
				entry(enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, h(1)),
				entry(enums.RecoveryChannelLink, enums.RecoveryOutcomeGenerated, h(7)),
				entry(enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeSent, h(7)),
				entry(enums.RecoveryChannelCoupon, enums.RecoveryOutcomeSent, h(31)),
			},
			wantStage: StageCoupon,
			wantLast:  h(31),
		},
		{
			name: "failed send moves the clock but not the stage",
			logs: []models.RecoveryLog{
				entry(enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, h(1)),
				entry(enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeFailed, h(7)),
			},
			wantStage: StageEmail,
			wantLast:  h(7),
		},
		{
			name: "whatsapp without a prior email does not advance",
			logs: []models.RecoveryLog{
				entry(enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeSent, h(2)),
			},
			wantStage: StageNone,
			wantLast:  h(2),
		},
		{
			name: "link and order entries are ignored",
			logs: []models.RecoveryLog{
				entry(enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, h(1)),
				entry(enums.RecoveryChannelLink, enums.RecoveryOutcomeRecovered, h(3)),
				entry(enums.RecoveryChannelOrder, enums.RecoveryOutcomeRecovered, h(4)),
			},
			wantStage: StageEmail,
			wantLast:  h(1),
		},
		{
			name: "repeated email sends stay at stage one",
			logs: []models.RecoveryLog{
				entry(enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, h(1)),
				entry(enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, h(2)),
			},
			wantStage: StageEmail,
			wantLast:  h(2),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStage(created, tc.logs)
			assert.Equal(t, tc.wantStage, got.Stage)
			assert.True(t, tc.wantLast.Equal(got.LastEventAt), "last event %s, want %s", got.LastEventAt, tc.wantLast)
		})
	}
}
