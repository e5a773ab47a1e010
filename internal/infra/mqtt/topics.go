package mqtt

import (
	"fmt"
	"strings"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	payloadLock     = "LOCK"
	payloadUnlock   = "UNLOCK"
	payloadLocked   = "LOCKED"
	payloadUnlocked = "UNLOCKED"
	// Home Assistant resets an MQTT lock to unknown on "None".
	payloadUnknown = "None"
)

// Topics builds the topic names used by the bridge.
//
//	{prefix}/bridge/status              availability (retained)
//	{prefix}/tuya/report                inbound Tuya status reports
//	{prefix}/lock/{device_id}/state     lock state (retained)
//	{prefix}/lock/{device_id}/set       LOCK / UNLOCK commands
//	{discovery}/lock/{object_id}/config Home Assistant discovery
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.Prefix)
}

func (t Topics) StatusReport() string {
	return fmt.Sprintf("%s/tuya/report", t.Prefix)
}

func (t Topics) LockState(deviceID string) string {
	return fmt.Sprintf("%s/lock/%s/state", t.Prefix, deviceID)
}

func (t Topics) LockCommand(deviceID string) string {
	return fmt.Sprintf("%s/lock/%s/set", t.Prefix, deviceID)
}

func (t Topics) AllLockCommands() string {
	return t.LockCommand("+")
}

func (t Topics) LockDiscovery(uniqueID string) string {
	return fmt.Sprintf("%s/lock/%s/config", t.DiscoveryPrefix, ObjectID(uniqueID))
}

// DeviceFromCommand extracts the device id from a LockCommand topic.
func (t Topics) DeviceFromCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/lock/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/set")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}

// ObjectID turns an entity unique id into a topic-safe identifier.
func ObjectID(uniqueID string) string {
	return strings.NewReplacer(".", "_", "/", "_", "+", "_", "#", "_").Replace(uniqueID)
}
