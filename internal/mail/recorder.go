package mail

import (
	"context"
	"sync"
)

// Recorder is an in-memory Mailer for tests and dry runs.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	// Fail, when set, decides per message whether Send returns an error.
	Fail func(Message) error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	if r.Fail != nil {
		if err := r.Fail(msg); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of every delivered message.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Reset forgets delivered messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
