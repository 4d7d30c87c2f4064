package order

import (
	"github.com/qmuntal/stateless"
)

type State string

const (
	StatePending             State = "PENDING"
	StateValidating          State = "VALIDATING"
	StateProcessingPayment   State = "PROCESSING_PAYMENT"
	StateReservingInventory  State = "RESERVING_INVENTORY"
	StateSendingNotification State = "SENDING_NOTIFICATION"
	StateCompleted           State = "COMPLETED"
	StateCompensating        State = "COMPENSATING"
	StateCancelled           State = "CANCELLED"
	StateFailed              State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

type trigger string

const (
	triggerValidate   trigger = "validate"
	triggerPay        trigger = "pay"
	triggerReserve    trigger = "reserve"
	triggerNotify     trigger = "notify"
	triggerComplete   trigger = "complete"
	triggerCompensate trigger = "compensate"
	triggerCancel     trigger = "cancel"
	triggerFail       trigger = "fail"
)

// newStateMachine returns the order lifecycle. Every step can fail or be canceled, and steps that
// committed something are compensated first.
func newStateMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StatePending)

	inFlight := []State{StatePending, StateValidating, StateProcessingPayment, StateReservingInventory, StateSendingNotification}
	for _, s := range inFlight {
		sm.Configure(s).
			Permit(triggerCompensate, StateCompensating).
			Permit(triggerCancel, StateCancelled).
			Permit(triggerFail, StateFailed)
	}

	sm.Configure(StatePending).
		Permit(triggerValidate, StateValidating)

	sm.Configure(StateValidating).
		Permit(triggerPay, StateProcessingPayment)

	sm.Configure(StateProcessingPayment).
		Permit(triggerReserve, StateReservingInventory)

	sm.Configure(StateReservingInventory).
		Permit(triggerNotify, StateSendingNotification)

	sm.Configure(StateSendingNotification).
		Permit(triggerComplete, StateCompleted)

	sm.Configure(StateCompensating).
		Permit(triggerCancel, StateCancelled).
		Permit(triggerFail, StateFailed)

	// A notification failing after completion does not change the outcome
	sm.Configure(StateCompleted).
		Ignore(triggerFail)

	return sm
}

func current(sm *stateless.StateMachine) State {
	return sm.MustState().(State)
}
