package domain

type LockState string

const (
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
	LockStateUnknown  LockState = "unknown"
)

// NewLockState converts the (locked, known) pair returned by a lock
// entity into a LockState.
func NewLockState(locked, known bool) LockState {
	switch {
	case !known:
		return LockStateUnknown
	case locked:
		return LockStateLocked
	default:
		return LockStateUnlocked
	}
}
