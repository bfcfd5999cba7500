package domain

// SyncStatus tracks whether a request's external effect has reached the
// resource directory.
type SyncStatus string

const (
	SyncNone    SyncStatus = "NONE"
	SyncPending SyncStatus = "SYNC_PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "SYNC_FAILED"
)

func (s SyncStatus) String() string { return string(s) }
