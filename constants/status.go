package constants

// RunStatus is the canonical status for rows in the extraction run index.
type RunStatus string

// Stable values (store these exact strings in the DB).
const (
	RunStatusQueued   RunStatus = "QUEUED"   // discovered, not yet processed
	RunStatusRunning  RunStatus = "RUNNING"  // in progress
	RunStatusParsed   RunStatus = "PARSED"   // model response parsed into tables
	RunStatusFallback RunStatus = "FALLBACK" // parse failed, raw text dumped
	RunStatusFailed   RunStatus = "FAILED"   // terminal failure
)
