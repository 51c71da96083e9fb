package callsign

import (
	"strconv"
)

// UnrankedDesignator stands in for the rank designator until a member holds
// a rank.
const UnrankedDesignator = "0"

// Compose builds the canonical callsign string. Every rank, team, or
// identifier change recomposes and persists the result; nothing derives it
// lazily at read time.
//
// Forms:
//
//	CPTPD          no identifier assigned yet
//	CPTPD-101      identifier without a team designator
//	CPTPD-101(K9)  identifier with a team designator
func Compose(rankDesignator, departmentPrefix string, identifier *int, teamDesignator *string) string {
	designator := rankDesignator
	if designator == "" {
		designator = UnrankedDesignator
	}

	callsign := designator + departmentPrefix
	if identifier == nil {
		return callsign
	}

	callsign += "-" + strconv.Itoa(*identifier)
	if teamDesignator != nil && *teamDesignator != "" {
		callsign += "(" + *teamDesignator + ")"
	}
	return callsign
}
