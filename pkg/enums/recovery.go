package enums

import "fmt"

// RecoveryChannel identifies how a recovery log entry reached the shopper.
type RecoveryChannel string

const (
	RecoveryChannelEmail    RecoveryChannel = "email"
	RecoveryChannelWhatsApp RecoveryChannel = "whatsapp"
	RecoveryChannelCoupon   RecoveryChannel = "coupon"
	RecoveryChannelLink     RecoveryChannel = "link"
	RecoveryChannelOrder    RecoveryChannel = "order"
)

var validRecoveryChannels = []RecoveryChannel{
	RecoveryChannelEmail,
	RecoveryChannelWhatsApp,
	RecoveryChannelCoupon,
	RecoveryChannelLink,
	RecoveryChannelOrder,
}

func (c RecoveryChannel) String() string {
	return string(c)
}

// IsValid reports whether the channel is known.
func (c RecoveryChannel) IsValid() bool {
	for _, candidate := range validRecoveryChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsReminder reports whether entries on this channel take part in stage progression.
func (c RecoveryChannel) IsReminder() bool {
	return c == RecoveryChannelEmail || c == RecoveryChannelWhatsApp || c == RecoveryChannelCoupon
}

// ParseRecoveryChannel converts raw input into a RecoveryChannel.
func ParseRecoveryChannel(value string) (RecoveryChannel, error) {
	for _, candidate := range validRecoveryChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recovery channel %q", value)
}

// RecoveryOutcome records the result of a recovery attempt.
type RecoveryOutcome string

const (
	RecoveryOutcomeSent      RecoveryOutcome = "sent"
	RecoveryOutcomeFailed    RecoveryOutcome = "failed"
	RecoveryOutcomeGenerated RecoveryOutcome = "generated"
	RecoveryOutcomeRecovered RecoveryOutcome = "recovered"
)

var validRecoveryOutcomes = []RecoveryOutcome{
	RecoveryOutcomeSent,
	RecoveryOutcomeFailed,
	RecoveryOutcomeGenerated,
	RecoveryOutcomeRecovered,
}

func (o RecoveryOutcome) String() string {
	return string(o)
}

// IsValid reports whether the outcome is known.
func (o RecoveryOutcome) IsValid() bool {
	for _, candidate := range validRecoveryOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseRecoveryOutcome converts raw input into a RecoveryOutcome.
func ParseRecoveryOutcome(value string) (RecoveryOutcome, error) {
	for _, candidate := range validRecoveryOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recovery outcome %q", value)
}
