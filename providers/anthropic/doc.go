// Package anthropic implements core/turnctl.Client against Anthropic's
// Messages API. It speaks core/conversation's content-block model directly
// rather than a provider-agnostic abstraction: this module drives exactly
// one backend, so the extra layer of indirection buys nothing.
//
// The primary entry point is [New], which reads ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL from the environment. Use [WithAPIKey],
// [WithBaseURL], [WithHTTPClient], and [WithObservability] to configure the
// client programmatically.
package anthropic
