package background

// Aggregate folds the states of a composite group's members into one state.
//
// Members are visited in order. WAITING and WORKING both force the result to
// WAITING, STARTING and SUCCESS only fill an undecided result, and the first
// fail-like member wins outright. A group mixing SUCCESS and WORKING therefore
// reads as WAITING, and one that is entirely SUCCESS reads as SUCCESS.
//
// Aggregate panics with ErrEmptyComposite if parts is empty; a composite
// always has members.
func Aggregate(parts []StatusRecord) JobState {
	if len(parts) == 0 {
		panic(ErrEmptyComposite)
	}

	states := make([]JobState, len(parts))
	for i, p := range parts {
		states[i] = p.State
	}
	return AggregateStates(states)
}

// AggregateStates applies the Aggregate fold to bare states.
func AggregateStates(states []JobState) JobState {
	if len(states) == 0 {
		panic(ErrEmptyComposite)
	}

	state := JobStateUnspecified
	for _, s := range states {
		switch {
		case s == JobStateWaiting, s == JobStateWorking:
			state = JobStateWaiting
		case s == JobStateStarting, s == JobStateSuccess:
			if state == JobStateUnspecified {
				state = s
			}
		case s.IsFail():
			return s
		}
	}
	return state
}
