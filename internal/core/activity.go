package core

import "time"

const (
	ResourceBank        = "bank"
	ResourceBankAccount = "bank_account"
	ResourceTransaction = "transaction"
	ResourceUpload      = "upload"

	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionRestore = "restore"
	ActionUpload  = "upload"

	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"

	SyncPending    SyncStatus = "pending"
	SyncProcessing SyncStatus = "processing"
	SyncDone       SyncStatus = "synced"
	SyncFailed     SyncStatus = "failed"
)

type (
	Outcome    string
	SyncStatus string

	// Activity is one journaled mutation made through the front end.
	Activity struct {
		ID            int64
		CorrelationID string
		Actor         string
		Resource      string
		Action        string
		ResourceID    int64
		Outcome       Outcome
		Detail        string
		CreatedAt     time.Time
		SyncStatus    SyncStatus
		Attempts      int
		LastError     string
	}

	// ActivityStats counts journal rows by sync status.
	ActivityStats struct {
		Pending    int64
		Processing int64
		Synced     int64
		Failed     int64
	}
)
