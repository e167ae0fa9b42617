package llm

import "context"

// streamBuffer is the channel capacity for provider streams.
const streamBuffer = 100

// emit delivers a chunk unless the consumer's context is done. Producers stop
// as soon as it returns false, so an abandoned stream never blocks them.
func emit(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
