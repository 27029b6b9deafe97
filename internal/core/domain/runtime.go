package domain

// Storage backend names
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendFile     = "file"
)

// BackendDescriptor records which adapters serve the credential store, the
// authorization state ledger and the refresh lease. It is fixed at startup.
type BackendDescriptor struct {
	Store  string `json:"store"`
	Ledger string `json:"ledger"`
	Lock   string `json:"lock,omitempty"` // empty when refresh is coordinated in-process only
}

// NewBackendDescriptor creates a descriptor
func NewBackendDescriptor(store, ledger, lock string) BackendDescriptor {
	return BackendDescriptor{Store: store, Ledger: ledger, Lock: lock}
}

// Distributed reports whether refresh leases are shared across hosts.
// File locks only reach processes on the same host.
func (d BackendDescriptor) Distributed() bool {
	return d.Lock != "" && d.Lock != BackendFile
}

// LockOrNone returns the lock backend name, or "none".
func (d BackendDescriptor) LockOrNone() string {
	if d.Lock == "" {
		return "none"
	}
	return d.Lock
}
