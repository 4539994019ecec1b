package distributor

// PendingRoot is a proposed commitment waiting out the timelock. SubmittedAt
// is the unix timestamp of the proposal; the stored form keeps the
// submittedAt == 0 sentinel for "absent" so persisted instances stay
// bit-stable, but in memory absence is a nil *PendingRoot.
type PendingRoot struct {
	Root        [32]byte
	IPFSHash    [32]byte
	SubmittedAt int64
}

// Distributor is the governance and commitment state of a single instance.
// Root and IPFSHash move as one atomic pair: every mutation writes both.
// Timelock is expressed in seconds. A zero Root means no commitment is
// active and claims are disabled.
type Distributor struct {
	Owner    [20]byte
	Timelock uint64
	Root     [32]byte
	IPFSHash [32]byte
	Pending  *PendingRoot
}

// Clone produces a deep copy so callers cannot mutate engine-held state.
func (d *Distributor) Clone() *Distributor {
	if d == nil {
		return nil
	}
	out := *d
	if d.Pending != nil {
		pending := *d.Pending
		out.Pending = &pending
	}
	return &out
}

// HasPending reports whether a proposed root is staged.
func (d *Distributor) HasPending() bool {
	return d != nil && d.Pending != nil
}
