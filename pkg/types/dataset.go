package types

// Dataset is the complete fetch result for one (release, architecture):
// every known issue plus the set of binary packages the release ships.
// The package list is what lets an audit distinguish "no known issues"
// from "this release has never heard of that package".
type Dataset struct {
	Records  []IssueRecord
	Packages []string
}
