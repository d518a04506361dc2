package generation

import "github.com/jonathan/resume-optimizer/internal/types"

// State is a step of one generation request.
type State string

// Pending → Sent → {Received, TimedOut, ProviderError} → {Validated, ValidationFailed} → {Success, Exhausted}
const (
	StatePending          State = "pending"
	StateSent             State = "sent"
	StateReceived         State = "received"
	StateTimedOut         State = "timed_out"
	StateProviderError    State = "provider_error"
	StateValidated        State = "validated"
	StateValidationFailed State = "validation_failed"
	StateSuccess          State = "success"
	StateExhausted        State = "exhausted"
)

var transitions = map[State][]State{
	StatePending:          {StateSent},
	StateSent:             {StateReceived, StateTimedOut, StateProviderError},
	StateReceived:         {StateValidated, StateValidationFailed},
	StateValidated:        {StateSuccess},
	StateValidationFailed: {StateExhausted},
	StateTimedOut:         {StateExhausted},
	StateProviderError:    {StateExhausted},
}

// CanTransition reports whether next may follow current.
func CanTransition(current, next State) bool {
	for _, s := range transitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// Attempt is the trace of one provider call.
type Attempt struct {
	Number   int
	Repair   bool
	States   []State
	Problems []string
}

func (a *Attempt) move(next State) {
	if n := len(a.States); n > 0 && !CanTransition(a.States[n-1], next) {
		panic("generation: invalid transition " + string(a.States[n-1]) + " -> " + string(next))
	}
	a.States = append(a.States, next)
}

// Final returns the last state reached.
func (a Attempt) Final() State {
	if len(a.States) == 0 {
		return StatePending
	}
	return a.States[len(a.States)-1]
}

// Raw is the unvalidated answer of one provider call.
type Raw struct {
	Text    string
	Attempt int
}

// Parsed is a validated answer.
type Parsed struct {
	OptimizedText types.MaskedText
	Score         types.MatchScore
	ScoreClamped  bool
	Suggestions   []string
	Keywords      []string
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeValidationFailed
	OutcomeExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of validating an answer or of a whole run.
// Parsed is set for OutcomeSuccess, Problems for OutcomeValidationFailed and
// Err for OutcomeExhausted.
type Outcome struct {
	Kind     OutcomeKind
	Parsed   *Parsed
	Problems []string
	Err      error
	Attempts []Attempt
}

// Generated is a successful run.
type Generated struct {
	Parsed
	AttemptCount int
	Attempts     []Attempt
}
