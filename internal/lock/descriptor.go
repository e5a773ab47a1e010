package lock

import "sort"

// Data point codes used by supported locks.
const (
	DPCodeM15WifiLockState = "m15_wifi_01_lock_state"
)

// Descriptor configures how a lock entity reads its state. Key is the
// data point code carrying the lock state; LockedValue and UnlockedValue
// are the raw values the device reports for each state.
type Descriptor struct {
	Key           string
	LockedValue   any
	UnlockedValue any
	Icon          string
}

// The Tuya standard lock data point reports true for unlocked and false
// for locked. Categories that invert this set their own values.
var locks = map[string]Descriptor{
	"jtmsbh": {
		Key:           DPCodeM15WifiLockState,
		LockedValue:   false,
		UnlockedValue: true,
		Icon:          "mdi:lock",
	},
}

// Lookup returns the descriptor for a device category.
func Lookup(category string) (Descriptor, bool) {
	d, ok := locks[category]
	return d, ok
}

// Categories lists the supported device categories.
func Categories() []string {
	result := make([]string, 0, len(locks))
	for c := range locks {
		result = append(result, c)
	}
	sort.Strings(result)
	return result
}
