package approval

import (
	"time"

	"github.com/qmuntal/stateless"
)

type State string

const (
	StatePending      State = "PENDING_APPROVAL"
	StateApproved     State = "APPROVED"
	StateRejected     State = "REJECTED"
	StateAutoRejected State = "AUTO_REJECTED"
)

func (s State) Terminal() bool {
	return s != StatePending
}

const (
	triggerApprove = "approve"
	triggerReject  = "reject"
	triggerExpire  = "expire"
)

// Gate holds a single approval decision. The first decision is final, later decisions are
// ignored.
type Gate struct {
	sm *stateless.StateMachine

	note      string
	decidedAt time.Time
	ignored   int
}

func NewGate() *Gate {
	sm := stateless.NewStateMachine(StatePending)

	sm.Configure(StatePending).
		Permit(triggerApprove, StateApproved).
		Permit(triggerReject, StateRejected).
		Permit(triggerExpire, StateAutoRejected)

	for _, s := range []State{StateApproved, StateRejected, StateAutoRejected} {
		sm.Configure(s).
			Ignore(triggerApprove).
			Ignore(triggerReject).
			Ignore(triggerExpire)
	}

	return &Gate{sm: sm}
}

func (g *Gate) State() State {
	return g.sm.MustState().(State)
}

// Note is the approval note or rejection reason of the decision.
func (g *Gate) Note() string {
	return g.note
}

func (g *Gate) DecidedAt() time.Time {
	return g.decidedAt
}

// Ignored is the number of decisions that arrived after the gate was closed.
func (g *Gate) Ignored() int {
	return g.ignored
}

func (g *Gate) Approve(note string, at time.Time) bool {
	return g.decide(triggerApprove, note, at)
}

func (g *Gate) Reject(reason string, at time.Time) bool {
	return g.decide(triggerReject, reason, at)
}

func (g *Gate) Expire(at time.Time) bool {
	return g.decide(triggerExpire, "", at)
}

// decide reports whether the trigger decided the gate.
func (g *Gate) decide(trigger string, note string, at time.Time) bool {
	if g.State().Terminal() {
		g.ignored++
		return false
	}

	if err := g.sm.Fire(trigger); err != nil {
		return false
	}

	g.note = note
	g.decidedAt = at
	return true
}
