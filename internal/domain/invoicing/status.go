package invoicing

// Status is the lifecycle state of an invoice
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusValidated Status = "validated"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{
	StatusDraft, StatusSent, StatusValidated, StatusPaid,
	StatusOverdue, StatusRejected, StatusCancelled,
}

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no event can leave the status
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusRejected || s == StatusCancelled
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Event drives a status transition
type Event string

const (
	EventSend          Event = "send"
	EventValidate      Event = "validate"
	EventReject        Event = "reject"
	EventRecordPayment Event = "record_payment"
	EventMarkOverdue   Event = "mark_overdue"
	EventCancel        Event = "cancel"
)

// AllEvents lists every event
var AllEvents = []Event{
	EventSend, EventValidate, EventReject,
	EventRecordPayment, EventMarkOverdue, EventCancel,
}

// IsValid checks if the event is known
func (e Event) IsValid() bool {
	for _, known := range AllEvents {
		if e == known {
			return true
		}
	}
	return false
}

// String returns the string representation of Event
func (e Event) String() string {
	return string(e)
}

// transitions is the closed edge table. A missing pair is an invalid transition.
var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventSend:   StatusSent,
		EventCancel: StatusCancelled,
	},
	StatusSent: {
		EventValidate: StatusValidated,
		EventReject:   StatusRejected,
		EventCancel:   StatusCancelled,
	},
	StatusValidated: {
		EventRecordPayment: StatusPaid,
		EventMarkOverdue:   StatusOverdue,
		EventCancel:        StatusCancelled,
	},
	StatusOverdue: {
		EventCancel: StatusCancelled,
	},
}

// NextStatus returns the target of (from, event) or INVALID_TRANSITION.
// Guards that depend on invoice fields are checked by the Invoice.
func NextStatus(from Status, event Event) (Status, error) {
	to, ok := transitions[from][event]
	if !ok {
		return "", newTransitionError(from, event)
	}
	return to, nil
}

// AllowedEvents returns the events accepted from a status
func AllowedEvents(from Status) []Event {
	events := make([]Event, 0, len(transitions[from]))
	for _, e := range AllEvents {
		if _, ok := transitions[from][e]; ok {
			events = append(events, e)
		}
	}
	return events
}
