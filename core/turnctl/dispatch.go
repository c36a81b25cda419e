package turnctl

import (
	"context"
	"sync"

	"github.com/basher83/forgeflare/core/conversation"
)

// pendingTool is one ToolUse block queued for dispatch. Its position in the
// pending slice is its slot index in the eventual ToolResult array.
type pendingTool struct {
	block conversation.ContentBlock
}

// dispatchOutcome reports how a batch concluded.
type dispatchOutcome struct {
	results      []conversation.ContentBlock // ToolResult blocks, in slot order
	thresholdTag string                      // non-empty if a block budget tripped
	signalBreak  bool
}

// dispatchToolBatch collects the ToolUse blocks from msg (skipping
// null-input ones), classifies the batch, and runs it via the parallel or
// sequential path per §4.5 Tool dispatch.
func (c *Controller) dispatchToolBatch(ctx context.Context, msg conversation.Message) dispatchOutcome {
	var pending []pendingTool
	for _, b := range msg.ToolUseBlocks() {
		if b.NullInput() {
			continue
		}
		pending = append(pending, pendingTool{block: b})
	}

	allPure := len(pending) > 0
	for _, p := range pending {
		if c.dispatcher.Effect(p.block.Name) != conversation.Pure {
			allPure = false
			break
		}
	}

	if allPure {
		return c.dispatchParallel(ctx, pending)
	}
	return c.dispatchSequential(ctx, pending)
}

// recordBlock increments both block counters for a guard Block and reports
// the tag to exit with, if a threshold tripped. Consecutive takes
// precedence over total when both trip on the same block.
func (c *Controller) recordBlock() string {
	c.consecutiveBlockCount++
	c.totalBlockCount++

	if c.consecutiveBlockCount >= MaxConsecutiveBlocks {
		return TagBlockLimitConsecutive
	}
	if c.totalBlockCount >= MaxTotalBlocks {
		return TagBlockLimitTotal
	}
	return ""
}

// recordAllow resets the consecutive-block counter on any Allow decision.
func (c *Controller) recordAllow() {
	c.consecutiveBlockCount = 0
}

// dispatchParallel runs the all-pure batch: a PreToolUse guard/observe pass
// per block (sequential, since it may trip a threshold), with a worker
// goroutine spawned for each block as soon as it is allowed; all workers are
// joined before building results and running PostToolUse in slot order.
func (c *Controller) dispatchParallel(ctx context.Context, pending []pendingTool) dispatchOutcome {
	results := make([]conversation.ContentBlock, len(pending))
	allowed := make([]bool, len(pending))

	var wg sync.WaitGroup
	for i, p := range pending {
		pre := c.hooks.PreToolUse(ctx, p.block.Name, p.block.Input, c.toolIterations)
		if pre.Blocked {
			results[i] = conversation.ToolResult(p.block.ID, pre.Reason, true)
			if tag := c.recordBlock(); tag != "" {
				wg.Wait() // never detach already-spawned workers, even though their results are discarded
				return dispatchOutcome{thresholdTag: tag}
			}
			continue
		}

		c.recordAllow()
		allowed[i] = true
		wg.Add(1)
		go func(idx int, block conversation.ContentBlock) {
			defer func() {
				if r := recover(); r != nil {
					results[idx] = conversation.ToolResult(block.ID, "tool panicked", true)
				}
				wg.Done()
			}()
			c.echoToolStart(block.Name, block.Input)
			content, isError := c.dispatcher.Invoke(ctx, block.Name, block.Input, nil)
			c.echoToolResult(block.Name, content, isError)
			results[idx] = conversation.ToolResult(block.ID, content, isError)
		}(i, p.block)
	}
	wg.Wait()

	signalBreak := false
	for i, p := range pending {
		if !allowed[i] {
			continue
		}
		post := c.hooks.PostToolUse(ctx, p.block.Name, p.block.Input, results[i].Content, results[i].IsError, c.toolIterations)
		if post.Signaled {
			signalBreak = true
		}
	}

	return dispatchOutcome{results: results, signalBreak: signalBreak}
}

// dispatchSequential runs a mixed or all-mutating batch one block at a
// time: guard, invoke synchronously, post-hook, append — in order.
func (c *Controller) dispatchSequential(ctx context.Context, pending []pendingTool) dispatchOutcome {
	results := make([]conversation.ContentBlock, 0, len(pending))
	signalBreak := false

	for _, p := range pending {
		pre := c.hooks.PreToolUse(ctx, p.block.Name, p.block.Input, c.toolIterations)
		if pre.Blocked {
			results = append(results, conversation.ToolResult(p.block.ID, pre.Reason, true))
			if tag := c.recordBlock(); tag != "" {
				return dispatchOutcome{thresholdTag: tag}
			}
			continue
		}

		c.recordAllow()
		c.echoToolStart(p.block.Name, p.block.Input)
		content, isError := c.dispatcher.Invoke(ctx, p.block.Name, p.block.Input, nil)
		c.echoToolResult(p.block.Name, content, isError)
		post := c.hooks.PostToolUse(ctx, p.block.Name, p.block.Input, content, isError, c.toolIterations)
		if post.Signaled {
			signalBreak = true
		}
		results = append(results, conversation.ToolResult(p.block.ID, content, isError))
	}

	return dispatchOutcome{results: results, signalBreak: signalBreak}
}
