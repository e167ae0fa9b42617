package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mentora/internal/llm"
)

// Stream is a finite, single-use sequence of text fragments.
type Stream struct {
	ctx      context.Context
	ch       <-chan llm.StreamChunk
	cancel   context.CancelFunc
	err      error
	finished bool
	received bool
}

func single(text string) *Stream {
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Content: text}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return &Stream{ctx: context.Background(), ch: ch, cancel: func() {}}
}

// Next returns the next non-empty fragment. It returns false once the stream
// is exhausted; Err then reports whether it ended in failure. A stream that
// closes without a Done chunk was cut short and fails as a transport error.
func (s *Stream) Next() (string, bool) {
	if s.finished {
		return "", false
	}
	for chunk := range s.ch {
		if chunk.Error != nil {
			s.finish(classify(chunk.Error))
			return "", false
		}
		if chunk.Content != "" {
			s.received = true
			return chunk.Content, true
		}
		if chunk.Done {
			if !s.received {
				s.finish(&Error{Kind: KindEmpty, Err: ErrEmptyResponse})
			} else {
				s.finish(nil)
			}
			return "", false
		}
	}
	s.finish(&Error{Kind: KindTransport, Err: s.interrupted()})
	return "", false
}

func (s *Stream) interrupted() error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
	}
	return ErrStreamInterrupted
}

// Err reports the failure that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close abandons the stream. The producer observes the cancellation and
// stops without blocking.
func (s *Stream) Close() {
	if !s.finished {
		s.finish(nil)
	}
}

func (s *Stream) finish(err error) {
	s.finished = true
	s.err = err
	s.cancel()
}

// Collect drains the stream, calling fn for each fragment, and returns the
// concatenated text.
func (s *Stream) Collect(fn func(fragment string)) (string, error) {
	var sb strings.Builder
	for {
		frag, ok := s.Next()
		if !ok {
			break
		}
		sb.WriteString(frag)
		if fn != nil {
			fn(frag)
		}
	}
	return sb.String(), s.Err()
}
