package cloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/NVIDIA/cns-facts/pkg/attribute"
	"github.com/NVIDIA/cns-facts/pkg/transport"
)

// maxDepth bounds recursion into the metadata tree.
const maxDepth = 16

// FetchError reports a failed metadata request.
type FetchError struct {
	Path   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("metadata request %s failed: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("metadata request %s returned status %d", e.Path, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type fetcher struct {
	t transport.Transport
}

func newFetcher(t transport.Transport) *fetcher {
	return &fetcher{t: t}
}

func (f *fetcher) get(ctx context.Context, path string) (string, error) {
	body, status, err := f.t.Get(ctx, path)
	if err != nil {
		return "", &FetchError{Path: path, Err: err}
	}
	if status != http.StatusOK {
		return "", &FetchError{Path: path, Status: status}
	}
	return string(body), nil
}

func (f *fetcher) directory(ctx context.Context, path string) (map[string]any, error) {
	return f.walk(ctx, path, 0)
}

// walk fetches the listing at path. Entries ending in "/" are directories,
// "index=label" entries address the directory "index/", all other entries
// are leaves.
func (f *fetcher) walk(ctx context.Context, path string, depth int) (map[string]any, error) {
	if depth > maxDepth {
		return nil, &FetchError{Path: path, Err: fmt.Errorf("metadata tree deeper than %d", maxDepth)}
	}

	listing, err := f.get(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for _, line := range strings.Split(listing, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}

		if idx, _, ok := strings.Cut(name, "="); ok {
			sub, err := f.walk(ctx, path+idx+"/", depth+1)
			if err != nil {
				return nil, err
			}
			out[attribute.MetadataKey(idx)] = sub
			continue
		}

		if dir, ok := strings.CutSuffix(name, "/"); ok {
			sub, err := f.walk(ctx, path+name, depth+1)
			if err != nil {
				return nil, err
			}
			out[attribute.MetadataKey(dir)] = sub
			continue
		}

		body, err := f.get(ctx, path+name)
		if err != nil {
			return nil, err
		}
		out[attribute.MetadataKey(name)] = leaf(body)
	}
	return out, nil
}

// leaf converts a leaf body into a scalar, or an ordered sequence when
// the body spans several lines.
func leaf(body string) any {
	trimmed := strings.TrimRight(body, "\n")
	if !strings.Contains(trimmed, "\n") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	out := make([]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, l)
	}
	return out
}
