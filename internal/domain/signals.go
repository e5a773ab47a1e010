package domain

// Dispatcher signals sent by the device manager. Each carries the list
// of affected device ids.
const (
	SignalDiscoveryNew = "tuya_discovery_new"
	SignalDeviceUpdate = "tuya_device_update"
	SignalDeviceRemove = "tuya_device_remove"
)
