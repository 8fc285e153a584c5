package enums

// DeviceType is the coarse form factor derived from a user agent.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceUnknown DeviceType = "unknown"
)

func (d DeviceType) String() string {
	return string(d)
}
