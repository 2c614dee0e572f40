package collection

import "time"

// Playbook maps stages to day offsets driving next-action scheduling.
// The concrete values are policy configuration supplied from outside;
// DefaultPlaybook is only a fallback.
type Playbook struct {
	// StepOffsets is the number of days after a stage change at which the
	// next action is due. Stages without an entry produce no next action.
	StepOffsets map[Stage]int
	// PromiseGraceDays is how long after a promised payment date the case
	// waits before the promise counts as broken.
	PromiseGraceDays int
}

// DefaultPlaybook returns the built-in offsets used when no playbook is
// configured for an organization.
func DefaultPlaybook() Playbook {
	return Playbook{
		StepOffsets: map[Stage]int{
			StageInitial:   3,
			StageReminder1: 7,
			StageReminder2: 7,
			StageEscalated: 14,
		},
		PromiseGraceDays: 1,
	}
}

// NextActionAt computes the absolute timestamp of the next action after a
// change to stage at the given reference time. It returns nil for stages
// the playbook does not schedule (for example RESOLVED).
func (p Playbook) NextActionAt(stage Stage, from time.Time) *time.Time {
	offset, ok := p.StepOffsets[stage]
	if !ok {
		return nil
	}
	at := from.AddDate(0, 0, offset)
	return &at
}

// PromiseCheckAt computes when a recorded promise should be re-checked.
func (p Playbook) PromiseCheckAt(promise time.Time) *time.Time {
	at := promise.AddDate(0, 0, p.PromiseGraceDays)
	return &at
}
