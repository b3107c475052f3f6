package models

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusFinished  = "finished"
)

const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentFailed   = "failed"
)

const (
	ExceptionBlocked = "blocked"
	ExceptionExtra   = "extra"
)

const (
	// SlotGranularityMin is the fixed step between candidate slot starts.
	SlotGranularityMin = 15

	// DefaultHoldMinutes is used when a professional has no hold override.
	DefaultHoldMinutes = 30

	// MinutesPerDay bounds interval values stored as minutes from midnight.
	MinutesPerDay = 24 * 60

	// WorkerQueueSize is the buffered delivery queue size.
	WorkerQueueSize = 1000
)

const DateLayout = "2006-01-02"
