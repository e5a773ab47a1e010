// Package lock is the lock platform of the bridge.
//
// It maps Tuya device categories to lock descriptors, registers one
// entity per matching device when the device manager signals discovery,
// and turns lock/unlock requests into the Tuya smart-lock ticket and
// door-operate calls.
package lock
