package v1addon

import "github.com/embroider-build/embroider-sub001/internal/legacy"

// Decision is what the conversion did with one stock tree.
type Decision string

const (
	// Absent: nothing on disk and no hook.
	Absent Decision = "absent"
	// Stock: converted from its conventional location.
	Stock Decision = "stock"
	// CustomizedHandled: a compatibility adapter produced the tree.
	CustomizedHandled Decision = "customized-handled"
	// CustomizedFallback: the captured hook output was passed through.
	CustomizedFallback Decision = "customized-fallback"
	// CustomizedUnhandled: the hook is overridden and nothing could
	// convert it. Diagnosed.
	CustomizedUnhandled Decision = "customized-unhandled"
)

// TreeDecision records the decision for one tree type.
type TreeDecision struct {
	Tree     legacy.TreeType `json:"tree"`
	Decision Decision        `json:"decision"`
}
