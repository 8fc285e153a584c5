package geo

import (
	"strings"

	"github.com/angelmondragon/recovero-backend/pkg/enums"
)

// ParseUserAgent returns a coarse browser name and device class. Order
// matters: Edge and Opera carry Chrome tokens, Chrome carries Safari's.
func ParseUserAgent(ua string) (string, enums.DeviceType) {
	if strings.TrimSpace(ua) == "" {
		return "Unknown", enums.DeviceUnknown
	}
	lower := strings.ToLower(ua)
	return browser(lower), device(lower)
}

func browser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/") || strings.Contains(ua, "edga/") || strings.Contains(ua, "edgios/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome/") || strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "firefox/") || strings.Contains(ua, "fxios/"):
		return "Firefox"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident/"):
		return "Internet Explorer"
	default:
		return "Other"
	}
}

func device(ua string) enums.DeviceType {
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		return enums.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod"):
		return enums.DeviceMobile
	default:
		return enums.DeviceDesktop
	}
}
