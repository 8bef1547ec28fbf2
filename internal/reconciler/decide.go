package reconciler

// Outcome is the verdict for one record.
type Outcome string

const (
	// OutcomeUpToDate means the record already holds the address.
	OutcomeUpToDate Outcome = "up_to_date"
	// OutcomeNeedsUpsert means the record exists with other values, or a
	// write was forced.
	OutcomeNeedsUpsert Outcome = "needs_upsert"
	// OutcomeAbsent means no record with the name and type exists.
	OutcomeAbsent Outcome = "absent_needs_create"
)

// Decision is the result of comparing a scan with the candidate address.
type Decision struct {
	Outcome Outcome
	Forced  bool
}

// NeedsWrite reports whether the record has to be upserted.
func (d Decision) NeedsWrite() bool {
	return d.Outcome != OutcomeUpToDate
}

// Decide maps a scan to an outcome. force overrides everything else.
func Decide(scan ScanResult, force bool) Decision {
	switch {
	case force:
		return Decision{Outcome: OutcomeNeedsUpsert, Forced: true}
	case !scan.Present:
		return Decision{Outcome: OutcomeAbsent}
	case !scan.Matching:
		return Decision{Outcome: OutcomeNeedsUpsert}
	default:
		return Decision{Outcome: OutcomeUpToDate}
	}
}
