package model

import "math"

// unknownName is what every status renders as when the ledger reports a code
// outside its table.
const unknownName = "Unknown"

var (
	projectStatusNames   = [...]string{"Open", "InProgress", "Completed", "Cancelled"}
	milestoneStatusNames = [...]string{"Pending", "Funded", "Completed", "Cancelled"}
	proposalStatusNames  = [...]string{"Pending", "Accepted", "Rejected"}
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus uint8

// Project states, in ledger code order.
const (
	ProjectOpen ProjectStatus = iota
	ProjectInProgress
	ProjectCompleted
	ProjectCancelled

	ProjectStatusUnknown ProjectStatus = math.MaxUint8
)

// DecodeProjectStatus maps a ledger code to a status; codes outside the table map to ProjectStatusUnknown.
func DecodeProjectStatus(code uint8) ProjectStatus {
	if int(code) < len(projectStatusNames) {
		return ProjectStatus(code)
	}
	return ProjectStatusUnknown
}

func (s ProjectStatus) String() string { return statusName(projectStatusNames[:], int(s)) }

// MarshalText renders the status by name.
func (s ProjectStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name; unrecognised names become ProjectStatusUnknown.
func (s *ProjectStatus) UnmarshalText(b []byte) error {
	*s = ProjectStatus(statusCode(projectStatusNames[:], string(b), int(ProjectStatusUnknown)))
	return nil
}

// MilestoneStatus is the funding state of a milestone.
type MilestoneStatus uint8

// Milestone states, in ledger code order.
const (
	MilestonePending MilestoneStatus = iota
	MilestoneFunded
	MilestoneCompleted
	MilestoneCancelled

	MilestoneStatusUnknown MilestoneStatus = math.MaxUint8
)

// DecodeMilestoneStatus maps a ledger code to a status; codes outside the table map to MilestoneStatusUnknown.
func DecodeMilestoneStatus(code uint8) MilestoneStatus {
	if int(code) < len(milestoneStatusNames) {
		return MilestoneStatus(code)
	}
	return MilestoneStatusUnknown
}

func (s MilestoneStatus) String() string { return statusName(milestoneStatusNames[:], int(s)) }

// MarshalText renders the status by name.
func (s MilestoneStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name; unrecognised names become MilestoneStatusUnknown.
func (s *MilestoneStatus) UnmarshalText(b []byte) error {
	*s = MilestoneStatus(statusCode(milestoneStatusNames[:], string(b), int(MilestoneStatusUnknown)))
	return nil
}

// ProposalStatus is the hiring state of a proposal.
type ProposalStatus uint8

// Proposal states, in ledger code order.
const (
	ProposalPending ProposalStatus = iota
	ProposalAccepted
	ProposalRejected

	ProposalStatusUnknown ProposalStatus = math.MaxUint8
)

// DecodeProposalStatus maps a ledger code to a status; codes outside the table map to ProposalStatusUnknown.
func DecodeProposalStatus(code uint8) ProposalStatus {
	if int(code) < len(proposalStatusNames) {
		return ProposalStatus(code)
	}
	return ProposalStatusUnknown
}

func (s ProposalStatus) String() string { return statusName(proposalStatusNames[:], int(s)) }

// MarshalText renders the status by name.
func (s ProposalStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a status name; unrecognised names become ProposalStatusUnknown.
func (s *ProposalStatus) UnmarshalText(b []byte) error {
	*s = ProposalStatus(statusCode(proposalStatusNames[:], string(b), int(ProposalStatusUnknown)))
	return nil
}

func statusName(names []string, code int) string {
	if code >= 0 && code < len(names) {
		return names[code]
	}
	return unknownName
}

func statusCode(names []string, name string, unknown int) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return unknown
}
