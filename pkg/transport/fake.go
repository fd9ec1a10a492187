package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Response is a canned reply served by Fake.
type Response struct {
	Body   string
	Status int
	Err    error
}

// Fake is a scripted Transport for tests. Unknown paths answer 404.
// Fake records every call and is safe for concurrent use.
type Fake struct {
	// Reachable is returned by Probe.
	Reachable bool

	mu        sync.Mutex
	responses map[string]Response
	probes    []string
	gets      []string
}

// NewFake creates a Fake that answers the given paths.
func NewFake(reachable bool, responses map[string]Response) *Fake {
	if responses == nil {
		responses = make(map[string]Response)
	}
	return &Fake{
		Reachable: reachable,
		responses: responses,
	}
}

// Handle scripts the response for path.
func (f *Fake) Handle(path string, r Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = r
}

// Probe implements Transport.
func (f *Fake) Probe(ctx context.Context, address string, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, address)
	return f.Reachable && ctx.Err() == nil
}

// Get implements Transport.
func (f *Fake) Get(ctx context.Context, path string) ([]byte, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, path)

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r, ok := f.responses[path]
	if !ok {
		return []byte("not found"), http.StatusNotFound, nil
	}
	if r.Err != nil {
		return nil, 0, fmt.Errorf("failed to get %s: %w", path, r.Err)
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	return []byte(r.Body), status, nil
}

// Probes returns the addresses probed so far.
func (f *Fake) Probes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.probes...)
}

// Gets returns the paths fetched so far, in order.
func (f *Fake) Gets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

// Calls returns the total number of network operations issued.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.probes) + len(f.gets)
}
