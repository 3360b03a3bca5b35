package symbols

import "errors"

// ErrAlreadyTaken is returned when a batch is taken a second time.
var ErrAlreadyTaken = errors.New("batch already taken")

// DrainState is the take state of one batch.
type DrainState int

const (
	Collecting DrainState = iota
	Drained
)

func (s DrainState) String() string {
	if s == Drained {
		return "drained"
	}
	return "collecting"
}

// Drain guards a batch that may be taken exactly once.
type Drain struct {
	state DrainState
}

// Take moves the guard to Drained. Taking twice returns ErrAlreadyTaken.
func (d *Drain) Take() error {
	if d.state == Drained {
		return ErrAlreadyTaken
	}
	d.state = Drained
	return nil
}

// State returns the current state.
func (d *Drain) State() DrainState {
	return d.state
}
