package dialogue

import "github.com/PabloGalante/resq-agent/internal/domain"

// transitions is the declared order of the slot-filling sequence.
// Each state gates entry to the next one.
var transitions = map[domain.DialogueState]domain.DialogueState{
	domain.StateAwaitEmergency: domain.StateAwaitLocation,
	domain.StateAwaitLocation:  domain.StateAwaitName,
	domain.StateAwaitName:      domain.StateAwaitNumber,
	domain.StateAwaitNumber:    domain.StateFollowup,
	domain.StateFollowup:       domain.StateTerminated,
}

// gatingSlot is the slot a state waits for. FOLLOWUP and TERMINATED wait for none.
var gatingSlot = map[domain.DialogueState]domain.Slot{
	domain.StateAwaitEmergency: domain.SlotEmergency,
	domain.StateAwaitLocation:  domain.SlotLocation,
	domain.StateAwaitName:      domain.SlotName,
	domain.StateAwaitNumber:    domain.SlotNumber,
}

// Next returns the state following s in the fixed order.
func Next(s domain.DialogueState) domain.DialogueState {
	if n, ok := transitions[s]; ok {
		return n
	}
	return domain.StateTerminated
}

// settle moves the session past every slot state whose slot is already
// resolved, e.g. a phone number taken from caller ID.
func settle(sess *domain.CallSession) {
	if sess.HangUp {
		sess.State = domain.StateTerminated
		return
	}
	for {
		slot, ok := gatingSlot[sess.State]
		if !ok || !sess.Slot(slot).IsSet() {
			return
		}
		sess.State = Next(sess.State)
	}
}

// advance resolves the current state and moves to the next open one.
func advance(sess *domain.CallSession) {
	sess.State = Next(sess.State)
	settle(sess)
}
