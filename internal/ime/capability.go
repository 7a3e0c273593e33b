package ime

import "strings"

// Capability is a set of optional engine operations.
type Capability uint16

// Optional engine operations.
const (
	CapActivate Capability = 1 << iota
	CapDeactivate
	CapSelect
	CapSetLayoutParams
	CapGetMoreCandidates
	CapSelectionChange
	CapSurroundingTextChange
	CapSendStrokePoints
	CapDisplaysCandidates

	CapNone Capability = 0
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapActivate, "activate"},
	{CapDeactivate, "deactivate"},
	{CapSelect, "select"},
	{CapSetLayoutParams, "setLayoutParams"},
	{CapGetMoreCandidates, "getMoreCandidates"},
	{CapSelectionChange, "selectionChange"},
	{CapSurroundingTextChange, "surroundingTextChange"},
	{CapSendStrokePoints, "sendStrokePoints"},
	{CapDisplaysCandidates, "displaysCandidates"},
}

// Has reports whether every capability in c is in the set.
func (s Capability) Has(c Capability) bool {
	return s&c == c
}

// String returns the capability names joined with "|".
func (s Capability) String() string {
	if s == CapNone {
		return "none"
	}
	var names []string
	for _, n := range capabilityNames {
		if s.Has(n.cap) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// CapabilityReporter is implemented by engines whose method set is wider
// than what they actually support, such as script adapters that implement
// every interface and dispatch dynamically.
type CapabilityReporter interface {
	Capabilities() Capability
}

// Probe computes the capabilities of e from the interfaces it implements.
// A CapabilityReporter can narrow the result but never widen it.
func Probe(e Engine) Capability {
	var caps Capability
	if _, ok := e.(Activator); ok {
		caps |= CapActivate
	}
	if _, ok := e.(Deactivator); ok {
		caps |= CapDeactivate
	}
	if _, ok := e.(Selector); ok {
		caps |= CapSelect
	}
	if _, ok := e.(LayoutParamsSetter); ok {
		caps |= CapSetLayoutParams
	}
	if _, ok := e.(CandidateSource); ok {
		caps |= CapGetMoreCandidates
	}
	if _, ok := e.(SelectionChangeHandler); ok {
		caps |= CapSelectionChange
	}
	if _, ok := e.(SurroundingTextChangeHandler); ok {
		caps |= CapSurroundingTextChange
	}
	if _, ok := e.(StrokeReceiver); ok {
		caps |= CapSendStrokePoints
	}
	if _, ok := e.(CandidateDisplayer); ok {
		caps |= CapDisplaysCandidates
	}

	if r, ok := e.(CapabilityReporter); ok {
		caps &= r.Capabilities()
	}
	return caps
}
