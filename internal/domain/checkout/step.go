package checkout

import (
	"strconv"
)

// Step is the active position of the checkout wizard.
type Step int

const (
	StepAddress Step = iota + 1
	StepPayment
	StepReview
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepAddress:
		return "address"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	default:
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
}

// wizard is the step state. Completion is derived from furthest, the
// highest completed step, and the active step never exceeds furthest+1.
type wizard struct {
	active   Step
	furthest Step
}

func newWizard() wizard {
	return wizard{active: StepAddress}
}

func (w wizard) completed(s Step) bool {
	return s >= StepAddress && s <= w.furthest
}

func (w *wizard) goTo(s Step) error {
	switch {
	case w.active == StepSubmitted:
		return ErrSessionClosed
	case s == w.active:
		return nil
	case s == StepAddress:
	case s > StepAddress && s <= StepReview && w.completed(s-1):
	default:
		return ErrInconsistentState
	}
	w.active = s
	return nil
}

// complete marks s done and moves to the following step.
func (w *wizard) complete(s Step) {
	w.furthest = max(w.furthest, s)
	w.active = s + 1
}

func (w *wizard) submitted() {
	w.furthest = StepReview
	w.active = StepSubmitted
}
