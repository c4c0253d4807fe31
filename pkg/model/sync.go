package model

// SyncMetadata describes the last reconciliation between the local store
// and the remote source. LastSyncID is informational only.
type SyncMetadata struct {
	LastSync    *string `json:"lastSync"`
	LastSyncID  *string `json:"lastSyncId"`
	PendingSync bool    `json:"pendingSync"`
}

// SyncResult is the outcome of an explicit sync. It is returned, never
// raised: a rejected re-entrant sync is a result, not an error.
type SyncResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SyncStatus is the caller-facing view of sync state.
type SyncStatus struct {
	LastSync         *string `json:"lastSync"`
	PendingSync      bool    `json:"pendingSync"`
	BackendAvailable bool    `json:"backendAvailable"`
}
