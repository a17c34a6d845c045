package orchestratornode

import (
	"context"
	"errors"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

// RetryOnEmpty runs call up to maxAttempts times, repeating only while it
// reports an empty response. Any other error ends the loop immediately.
func RetryOnEmpty[T any](
	ctx context.Context,
	maxAttempts int,
	call func(ctx context.Context, attempt int) (T, error),
) (T, int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		out T
		err error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err = call(ctx, attempt)
		if err == nil || !errors.Is(err, contractx.ErrEmptyResponse) {
			return out, attempt, err
		}
	}
	return out, maxAttempts, err
}
