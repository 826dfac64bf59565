package coordinator

import (
	"context"
	"sync"

	"github.com/oshokin/sos-beacon/internal/domain/alert"
)

// fakeAdvisor records prompts and answers with text, err or fn.
type fakeAdvisor struct {
	mu      sync.Mutex
	prompts []string

	text string
	err  error
	fn   func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeAdvisor) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn, text, err := f.fn, f.text, f.err
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}

	return text, err
}

func (f *fakeAdvisor) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.prompts...)
}

// recorder implements both sinks and keeps what it was given.
type recorder struct {
	mu            sync.Mutex
	commands      []string
	notifications []alert.Notification

	commandErr error
	publishErr error
}

func (r *recorder) Send(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commandErr != nil {
		return r.commandErr
	}

	r.commands = append(r.commands, command)

	return nil
}

func (r *recorder) Publish(_ context.Context, n alert.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.publishErr != nil {
		return r.publishErr
	}

	r.notifications = append(r.notifications, n)

	return nil
}

func (r *recorder) sentCommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.commands...)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		names = append(names, n.Name)
	}

	return names
}

func (r *recorder) last() alert.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.notifications) == 0 {
		return alert.Notification{}
	}

	return r.notifications[len(r.notifications)-1]
}
