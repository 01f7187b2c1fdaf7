package session

// SaveState is the outcome of the most recent persistence attempt.
type SaveState int

const (
	StateIdle SaveState = iota
	StateSaving
	StateSaved
	StateError
	StateFailedToLoad
)

func (s SaveState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSaving:
		return "SAVING"
	case StateSaved:
		return "SAVED"
	case StateError:
		return "ERROR"
	case StateFailedToLoad:
		return "FAILED_TO_LOAD"
	default:
		return "UNKNOWN"
	}
}

// StateListener observes every save-state transition.
type StateListener func(SaveState)

// LoadOutcome summarizes ResolveAndLoad.
type LoadOutcome int

const (
	// OutcomeLoaded means working state was replaced from a store or a gist.
	OutcomeLoaded LoadOutcome = iota
	// OutcomeNoDiagram means nothing was available and the user was prompted for a dialect.
	OutcomeNoDiagram
	// OutcomeNotFound means an explicitly requested diagram is absent from both stores.
	OutcomeNotFound
	// OutcomeFailed means loading failed and working state was left untouched.
	OutcomeFailed
)

func (o LoadOutcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeNoDiagram:
		return "no_diagram"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SaveResult summarizes Save.
type SaveResult int

const (
	SaveCompleted SaveResult = iota
	SaveFailed
	// SaveSkipped means the save was not attempted because a load was in progress.
	SaveSkipped
)

func (r SaveResult) String() string {
	switch r {
	case SaveCompleted:
		return "completed"
	case SaveFailed:
		return "failed"
	case SaveSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Notice is a user-visible message key.
type Notice string

const (
	NoticeDiagramNotFound Notice = "didnt_find_diagram"
	NoticeLoadFailed      Notice = "failed_to_load"
	NoticeSaveFailed      Notice = "failed_to_save"
)
