package clients

import "context"

// FetchPage fetches one page of results for an opaque cursor. An empty
// cursor requests the first page; an empty next cursor means no more pages.
type FetchPage[T any] func(ctx context.Context, cursor string) (items []T, next string, err error)

// PageStream walks a server-driven cursor sequence (Amazon NextToken,
// Shopify page_info links, Unicommerce offsets) strictly in server order.
// There is no checkpointing: a stream is restartable only from the
// beginning, so consumers must be idempotent.
type PageStream[T any] struct {
	fetch  FetchPage[T]
	cursor string
	done   bool
}

// NewPageStream creates a stream starting at the first page.
func NewPageStream[T any](fetch FetchPage[T]) *PageStream[T] {
	return &PageStream[T]{fetch: fetch}
}

// Next returns the next batch of items. ok is false once the stream is
// exhausted. An empty page terminates the stream immediately; it is not an
// error.
func (s *PageStream[T]) Next(ctx context.Context) (items []T, ok bool, err error) {
	if s.done {
		return nil, false, nil
	}

	items, next, err := s.fetch(ctx, s.cursor)
	if err != nil {
		s.done = true
		return nil, false, err
	}

	if len(items) == 0 {
		s.done = true
		return nil, false, nil
	}

	if next == "" {
		s.done = true
	}
	s.cursor = next
	return items, true, nil
}

// Each streams every page through visit, stopping on the first error.
func (s *PageStream[T]) Each(ctx context.Context, visit func(items []T) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := visit(items); err != nil {
			return err
		}
	}
}
