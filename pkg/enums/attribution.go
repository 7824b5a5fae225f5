package enums

// AttributionStatus tracks a conversion through the matching pipeline.
type AttributionStatus string

const (
	// AttributionStatusNone marks events that never enter the matching
	// pipeline (anything that is not a purchase).
	AttributionStatusNone AttributionStatus = "none"
	// AttributionStatusPending means the conversion has not been examined yet
	// or is still inside its matching window.
	AttributionStatusPending AttributionStatus = "pending"
	// AttributionStatusMatched means a touchpoint claimed the conversion.
	AttributionStatusMatched AttributionStatus = "matched"
	// AttributionStatusUnmatched is terminal: the window elapsed with no match.
	AttributionStatusUnmatched AttributionStatus = "unmatched"
)

// String implements fmt.Stringer.
func (s AttributionStatus) String() string {
	return string(s)
}

// AttributionMethod names the tier of the fallback hierarchy that produced a match.
type AttributionMethod string

const (
	AttributionMethodClickID   AttributionMethod = "click_id"
	AttributionMethodUTM       AttributionMethod = "utm"
	AttributionMethodReferrer  AttributionMethod = "referrer"
	AttributionMethodTimeDecay AttributionMethod = "time_decay"
)

// String implements fmt.Stringer.
func (m AttributionMethod) String() string {
	return string(m)
}
