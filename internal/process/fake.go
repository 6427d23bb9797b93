package process

import (
	"context"
	"sync"
)

// Recorder is an Executor that records commands instead of running them. Fail maps a
// command line to the error it should return.
type Recorder struct {
	mu       sync.Mutex
	Commands []Command
	Fail     map[string]error
}

func (r *Recorder) Run(ctx context.Context, c Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, c)
	return r.Fail[c.Line]
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		out[i] = c.Line
	}
	return out
}
