package types

import "encoding/json"

// Status is the upstream tracker's disposition of an issue within one
// release, as recorded in UDD's security_issues_releases table.
type Status int

var (
	// Statuses is the known status vocabulary. Which of these count as
	// "ignored" for classification is decided by the policy table, not here.
	Statuses = []string{
		"unknown",
		"open",
		"resolved",
		"ignored",
		"undetermined",
	}
)

const (
	StatusUnknown Status = iota
	StatusOpen
	StatusResolved
	StatusIgnored
	StatusUndetermined
)

func NewStatus(status string) Status {
	for i, s := range Statuses {
		if status == s {
			return Status(i)
		}
	}
	return StatusUnknown
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(Statuses) {
		return Statuses[0]
	}
	return Statuses[s]
}

// MarshalJSON keeps the persisted form symbolic so cache snapshots stay
// readable across vocabulary reorderings.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = NewStatus(str)
	return nil
}
