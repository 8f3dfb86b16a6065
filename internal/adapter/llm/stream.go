package llm

import (
	"context"
	"sync"
	"time"

	"docrag/internal/port"
)

// chanStream adapts a producer goroutine to port.TokenStream.
type chanStream struct {
	fragments <-chan string
	errc      <-chan error
	cancel    context.CancelFunc
	current   string
	err       error
	done      bool
	closeOnce sync.Once
}

// newChanStream runs produce in a goroutine. produce must call emit for each
// fragment in order and return when generation ends or ctx is cancelled.
func newChanStream(ctx context.Context, produce func(ctx context.Context, emit func(string) error) error) *chanStream {
	ctx, cancel := context.WithCancel(ctx)
	fragments := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(fragments)
		err := produce(ctx, func(s string) error {
			select {
			case fragments <- s:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		errc <- err
	}()

	return &chanStream{fragments: fragments, errc: errc, cancel: cancel}
}

func (s *chanStream) Next() bool {
	if s.done {
		return false
	}
	for frag := range s.fragments {
		if frag == "" {
			continue
		}
		s.current = frag
		return true
	}
	s.done = true
	s.current = ""
	s.err = <-s.errc
	s.cancel()
	return false
}

func (s *chanStream) Text() string { return s.current }

func (s *chanStream) Err() error { return s.err }

func (s *chanStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if !s.done {
			// drain so the producer goroutine can exit
			for range s.fragments {
			}
			s.done = true
		}
	})
	return nil
}

// sliceStream replays precomputed fragments.
type sliceStream struct {
	fragments []string
	pos       int
}

func (s *sliceStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Text() string {
	if s.pos == 0 || s.pos > len(s.fragments) {
		return ""
	}
	return s.fragments[s.pos-1]
}

func (s *sliceStream) Err() error   { return nil }
func (s *sliceStream) Close() error { return nil }

// timeoutGenerator bounds every call to a deadline. For streams the deadline
// covers the whole stream and is released on Close.
type timeoutGenerator struct {
	port.Generator
	timeout time.Duration
}

func WithTimeout(g port.Generator, timeout time.Duration) port.Generator {
	if timeout <= 0 {
		return g
	}
	return &timeoutGenerator{Generator: g, timeout: timeout}
}

func (g *timeoutGenerator) Generate(ctx context.Context, prompt string, opts port.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.Generator.Generate(ctx, prompt, opts)
}

func (g *timeoutGenerator) Stream(ctx context.Context, prompt string, opts port.GenerateOptions) (port.TokenStream, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	s, err := g.Generator.Stream(ctx, prompt, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelStream{TokenStream: s, cancel: cancel}, nil
}

type cancelStream struct {
	port.TokenStream
	cancel context.CancelFunc
}

func (s *cancelStream) Next() bool {
	if s.TokenStream.Next() {
		return true
	}
	s.cancel()
	return false
}

func (s *cancelStream) Close() error {
	defer s.cancel()
	return s.TokenStream.Close()
}
