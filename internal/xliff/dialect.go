// Package xliff round-trips segments through bilingual interchange
// markup: extraction pulls trans-units into ordered segments, injection
// writes translations and state attributes back into the original bytes.
package xliff

import (
	"fmt"
	"strings"

	"horse.fit/verso/internal/db"
)

// Dialect parameterizes the qualified names used by an interchange
// variant. Extraction and injection are otherwise identical, so variants
// are configuration values, not separate adapters.
type Dialect struct {
	Name string

	// unitSpace is the namespace prefix on structural elements
	// (trans-unit, source, target). Empty for the standard dialect.
	unitSpace string
	// stateAttr is the qualified name of the per-unit state attribute,
	// read from and written to the target element.
	stateAttr string
}

var (
	// DialectStandard is plain XLIFF 1.2: unprefixed elements, the state
	// attribute on the target node.
	DialectStandard = Dialect{Name: "standard", stateAttr: "state"}

	// DialectVendor covers the vendor variant that prefixes structural
	// elements and the state attribute with the "v" namespace.
	DialectVendor = Dialect{Name: "vendor", unitSpace: "v", stateAttr: "v:state"}
)

// DialectByName resolves a stored dialect value. An empty name means the
// standard dialect.
func DialectByName(name string) (Dialect, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", DialectStandard.Name:
		return DialectStandard, nil
	case DialectVendor.Name:
		return DialectVendor, nil
	}
	return Dialect{}, fmt.Errorf("unknown interchange dialect %q", name)
}

// StatusFromState maps a unit's interchange state to the internal
// segment status. Unknown values fail open to pending so that one odd
// state never rejects a whole file.
func StatusFromState(state string, hasTarget bool) db.SegmentStatus {
	normalized := strings.TrimSpace(strings.ToLower(state))
	switch normalized {
	case "":
		if hasTarget {
			return db.SegmentStatusTranslated
		}
		return db.SegmentStatusPending
	case "new", "needs-translation", "needs-adaptation", "needs-l10n":
		return db.SegmentStatusPending
	case "translated",
		"needs-review-translation", "needs-review-adaptation", "needs-review-l10n":
		return db.SegmentStatusTranslated
	case "reviewed":
		return db.SegmentStatusReviewCompleted
	case "signed-off", "final":
		return db.SegmentStatusCompleted
	}
	return db.SegmentStatusPending
}

// knownState reports whether a state value belongs to the interchange
// vocabulary. Extraction warns on anything else.
func knownState(state string) bool {
	switch strings.TrimSpace(strings.ToLower(state)) {
	case "", "new", "needs-translation", "needs-adaptation", "needs-l10n",
		"translated", "needs-review-translation", "needs-review-adaptation",
		"needs-review-l10n", "reviewed", "signed-off", "final":
		return true
	}
	return false
}

// StateFromStatus is the inverse mapping used by injection. A completed
// segment whose unit was imported as signed-off keeps that value instead
// of being flattened to final.
func StateFromStatus(status db.SegmentStatus, importedState *string) string {
	switch status {
	case db.SegmentStatusTranslated, db.SegmentStatusReviewing:
		return "translated"
	case db.SegmentStatusReviewCompleted:
		return "reviewed"
	case db.SegmentStatusCompleted:
		if importedState != nil && strings.EqualFold(strings.TrimSpace(*importedState), "signed-off") {
			return "signed-off"
		}
		return "final"
	}
	return "needs-translation"
}
