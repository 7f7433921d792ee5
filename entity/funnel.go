package entity

import "strings"

// Funnel is the closed set of conversational workflows a contact can be routed to.
type Funnel int

const (
	FunnelInitialOutreach Funnel = iota
	FunnelQualifiedLead
)

// QualifiedStatusPrefix marks sales-qualified contacts.
const QualifiedStatusPrefix = "sdr_"

func (f Funnel) String() string {
	switch f {
	case FunnelQualifiedLead:
		return "core_sdr"
	default:
		return "core_bdr"
	}
}

// SelectFunnel is total: every status, including empty or unknown ones, maps to a funnel.
func SelectFunnel(contactStatus string) Funnel {
	if strings.HasPrefix(contactStatus, QualifiedStatusPrefix) {
		return FunnelQualifiedLead
	}
	return FunnelInitialOutreach
}
