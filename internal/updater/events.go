package updater

// EventKind discriminates session events.
type EventKind int

const (
	// EventStatus carries a human readable step description.
	EventStatus EventKind = iota
	// EventProgress carries the cumulative percentage, 0-100.
	EventProgress
	// EventError carries a human readable failure cause.
	EventError
	// EventFinished carries the terminal outcome. It is always the last
	// event of a session that ran to a terminal outcome; a cancelled
	// session closes its event channel without emitting it.
	EventFinished
)

// Event is one notification from a running session. Consumers drain the
// session's event channel; ordering is the emission order and Finished is
// delivered at most once.
type Event struct {
	Kind     EventKind
	Status   string
	Progress int
	Err      string
	Success  bool
}

func statusEvent(s string) Event  { return Event{Kind: EventStatus, Status: s} }
func progressEvent(p int) Event   { return Event{Kind: EventProgress, Progress: p} }
func errorEvent(msg string) Event { return Event{Kind: EventError, Err: msg} }
func finishedEvent(ok bool) Event { return Event{Kind: EventFinished, Success: ok} }
