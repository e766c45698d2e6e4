package classifier

import "fmt"

// State is a stage of a single classification run. Runs are single-pass:
// no state is ever revisited.
type State string

const (
	StateInitialized  State = "initialized"
	StateDeduplicated State = "deduplicated"
	StateEmbedded     State = "embedded"
	StateClustered    State = "clustered"
	StateBatched      State = "batched"
	StateReconciled   State = "reconciled"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// transitions lists the legal successor states. Failed is terminal and only
// reachable from Embedded (total embedding failure) or Reconciled (total
// classification failure); partial failures still reach Done.
var transitions = map[State][]State{
	StateInitialized:  {StateDeduplicated},
	StateDeduplicated: {StateEmbedded},
	StateEmbedded:     {StateClustered, StateFailed},
	StateClustered:    {StateBatched},
	StateBatched:      {StateReconciled},
	StateReconciled:   {StateDone, StateFailed},
}

// runState tracks the stage of one classification run.
type runState struct {
	current State
}

func newRunState() *runState {
	return &runState{current: StateInitialized}
}

// advance moves to the next state, rejecting transitions the machine does
// not define.
func (r *runState) advance(to State) error {
	for _, legal := range transitions[r.current] {
		if legal == to {
			r.current = to
			return nil
		}
	}
	return fmt.Errorf("illegal state transition %s -> %s", r.current, to)
}
