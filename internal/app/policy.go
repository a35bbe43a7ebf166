package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case NoAction:
		return "none"
	case MarkSlow:
		return "mark_slow"
	case DropFrame:
		return "drop_frame"
	}
	return "unknown"
}

// Policy decides what a refused outbound frame means for the session.
// consecutive counts refusals of kind since its last accepted frame.
type Policy interface {
	OnBackPressure(kind string, consecutive int) BackpressureAction
}

// SimplePolicy drops frames and marks the link slow after SlowAfter
// refusals in a row. Zero never marks slow.
type SimplePolicy struct {
	SlowAfter int
}

func (p SimplePolicy) OnBackPressure(_ string, consecutive int) BackpressureAction {
	if p.SlowAfter > 0 && consecutive >= p.SlowAfter {
		return MarkSlow
	}
	return DropFrame
}
