package booking

import "strings"

// Wizard is the booking state machine. It owns the current step and the
// patient's selection; callers never mutate either directly.
//
//	auth-check -> date -> time -> type -> motive -> summary -> success
//
// Forward moves are gated on the field collected by the current step.
// Back moves always succeed between date and summary and keep the
// selection intact. Wizard is not safe for concurrent use.
type Wizard struct {
	step Step
	sel  Selection
}

// NewWizard starts at the date step for an authenticated user and at
// auth-check otherwise.
func NewWizard(authenticated bool) *Wizard {
	if authenticated {
		return &Wizard{step: StepDate}
	}
	return &Wizard{step: StepAuthCheck}
}

func (w *Wizard) Step() Step           { return w.step }
func (w *Wizard) Selection() Selection { return w.sel }

// Authenticate leaves auth-check once the user has signed in.
func (w *Wizard) Authenticate() error {
	if w.step != StepAuthCheck {
		return invalid(w.step, "already authenticated")
	}
	w.step = StepDate
	return nil
}

// SelectDate records a date. It is accepted on the date step and on the
// time step, where the patient may switch days while picking a time.
// Changing the date keeps the selected time so it can be reconciled against
// the new day's slots.
func (w *Wizard) SelectDate(date string) error {
	if w.step != StepDate && w.step != StepTime {
		return invalid(w.step, "date can only be changed on the date or time step")
	}
	if date == "" {
		return invalid(w.step, "date is required")
	}
	w.sel.Date = date
	return nil
}

// SelectTime records a start time on the time step.
func (w *Wizard) SelectTime(t string) error {
	if w.step != StepTime {
		return invalid(w.step, "time can only be chosen on the time step")
	}
	if t == "" {
		return invalid(w.step, "time is required")
	}
	w.sel.Time = t
	return nil
}

// SelectType records the appointment type on the type step.
func (w *Wizard) SelectType(typeID string) error {
	if w.step != StepType {
		return invalid(w.step, "appointment type can only be chosen on the type step")
	}
	if typeID == "" {
		return invalid(w.step, "appointment type is required")
	}
	w.sel.TypeID = typeID
	return nil
}

// SetMotive records the free-text reason for the visit. Whitespace is kept
// as typed; only the gate trims it.
func (w *Wizard) SetMotive(motive string) error {
	if w.step != StepMotive {
		return invalid(w.step, "motive can only be entered on the motive step")
	}
	w.sel.Motive = motive
	return nil
}

// ReconcileTime clears the selected time when available reports it is not
// bookable on the selected date. It returns true if the time was cleared.
func (w *Wizard) ReconcileTime(available func(t string) bool) bool {
	if w.sel.Time == "" || available(w.sel.Time) {
		return false
	}
	w.sel.Time = ""
	return true
}

// CanContinue reports whether Next would succeed.
func (w *Wizard) CanContinue() bool {
	return w.gate() == nil
}

func (w *Wizard) gate() error {
	switch w.step {
	case StepAuthCheck:
		return invalid(w.step, "sign in to continue")
	case StepDate:
		if w.sel.Date == "" {
			return invalid(w.step, "select a date")
		}
	case StepTime:
		if w.sel.Time == "" {
			return invalid(w.step, "select a time")
		}
	case StepType:
		if w.sel.TypeID == "" {
			return invalid(w.step, "select an appointment type")
		}
	case StepMotive:
		if strings.TrimSpace(w.sel.Motive) == "" {
			return invalid(w.step, "describe the reason for the visit")
		}
	case StepSummary:
		return invalid(w.step, "submit the appointment to continue")
	case StepSuccess:
		return invalid(w.step, "booking is complete")
	}
	return nil
}

var forward = map[Step]Step{
	StepDate:   StepTime,
	StepTime:   StepType,
	StepType:   StepMotive,
	StepMotive: StepSummary,
}

var backward = map[Step]Step{
	StepTime:    StepDate,
	StepType:    StepTime,
	StepMotive:  StepType,
	StepSummary: StepMotive,
}

// Next advances one step if the current step's gate passes.
func (w *Wizard) Next() error {
	if err := w.gate(); err != nil {
		return err
	}
	w.step = forward[w.step]
	return nil
}

// Back returns to the previous step without touching the selection.
func (w *Wizard) Back() error {
	prev, ok := backward[w.step]
	if !ok {
		return invalid(w.step, "cannot go back from this step")
	}
	w.step = prev
	return nil
}

// Complete moves summary to success after the appointment was created and
// clears the selection.
func (w *Wizard) Complete() error {
	if w.step != StepSummary {
		return invalid(w.step, "only a summary can be completed")
	}
	if !w.sel.Complete() {
		return invalid(w.step, "selection is incomplete")
	}
	w.step = StepSuccess
	w.sel = Selection{}
	return nil
}

// Reset clears the selection and restarts at the date step. An
// unauthenticated wizard stays at auth-check.
func (w *Wizard) Reset() {
	w.sel = Selection{}
	if w.step != StepAuthCheck {
		w.step = StepDate
	}
}
