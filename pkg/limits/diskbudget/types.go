package diskbudget

// Config contains the disk budget ceiling.
type Config struct {
	// Limit is the maximum number of bytes all capture files may occupy.
	Limit int64

	// InitialUsed seeds the consumed total, e.g. from files already
	// written by a previous run. Values above Limit are clamped to Limit.
	InitialUsed int64

	// AlertThreshold is the fraction (0.0-1.0) of the limit at which
	// Status reports AlertTriggered. Zero disables alerts.
	AlertThreshold float64
}

// Status is a point-in-time view of the budget.
type Status struct {
	// Limit is the configured ceiling in bytes.
	Limit int64

	// Used is the number of bytes committed so far.
	Used int64

	// Remaining is Limit - Used.
	Remaining int64

	// Percentage is Used / Limit (0.0-1.0).
	Percentage float64

	// Exhausted is true when no further byte fits.
	Exhausted bool

	// AlertTriggered indicates the alert threshold was reached.
	AlertTriggered bool

	// Reservations counts successful TryReserve calls.
	Reservations uint64

	// Rejections counts TryReserve calls that did not fit.
	Rejections uint64
}
