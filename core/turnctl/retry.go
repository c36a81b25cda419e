package turnctl

import (
	"context"
	"errors"
	"time"

	"github.com/basher83/forgeflare/core/conversation"
	"github.com/basher83/forgeflare/core/errclass"
)

// retryBackoffSchedule is indexed by attempt number when no retry_after
// header is present (§4.5 Retry loop).
var retryBackoffSchedule = [4]time.Duration{
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// maxAttempts is attempts 0..4 inclusive: one initial call plus four retries.
const maxAttempts = 5

// sleep is overridable in tests to avoid real waits.
var sleep = time.Sleep

// callResult is the outcome of a single attempted API call.
type callResult struct {
	blocks []conversation.ContentBlock
	stop   conversation.StopReason
	usage  conversation.Usage
}

// callWithRetry drives the trim gate and retry loop around one streamed API
// call. onText is forwarded verbatim to the client as the streaming
// text-delta callback. It returns the assembled result, or false with the
// recovered conversation already applied and stopTag set to "api_error" if
// every attempt failed.
func (c *Controller) callWithRetry(ctx context.Context, onText func(string)) (callResult, bool) {
	if shouldTrim(c.lastInputTokens) {
		c.buf.Replace(trimConversation(c.buf.Messages()))
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		blocks, stop, usage, err := c.client.StreamMessage(ctx, c.buf.Messages(), c.cfg.System, c.cfg.Model, c.cfg.MaxTokens, c.cfg.Tools, onText)
		if err == nil {
			return callResult{blocks: blocks, stop: stop, usage: usage}, true
		}

		class := errclass.Classify(err)
		final := attempt == maxAttempts-1

		if class == errclass.Permanent || final {
			c.logf(ctx, "api call failed (attempt %d, permanent=%v, final=%v): %v", attempt, class == errclass.Permanent, final, err)
			recoverConversation(c.buf)
			c.stopTag = TagAPIError
			return callResult{}, false
		}

		// Transient, not final: delay then retry. StreamTransient retries
		// restart the response from scratch — there is nothing partial to
		// resume, so no state is carried between attempts beyond the delay.
		delay := retryDelay(err, attempt)
		c.logf(ctx, "api call transient failure (attempt %d), retrying in %s: %v", attempt, delay, err)
		sleep(delay)
	}

	// Unreachable: the loop above always returns by attempt 4.
	recoverConversation(c.buf)
	c.stopTag = TagAPIError
	return callResult{}, false
}

// retryDelay prefers a capped retry_after header when present, else the
// fixed backoff schedule indexed by attempt.
func retryDelay(err error, attempt int) time.Duration {
	var fault *errclass.Fault
	if errors.As(err, &fault) && fault.RetryAfter > 0 {
		return time.Duration(errclass.CappedRetryAfter(fault.RetryAfter)) * time.Second
	}
	if attempt < len(retryBackoffSchedule) {
		return retryBackoffSchedule[attempt]
	}
	return retryBackoffSchedule[len(retryBackoffSchedule)-1]
}
