// Package llm wraps the chat-completions API used for AI-assisted match
// classification. Requests always ask for JSON-only responses; transient
// failures are retried with exponential backoff honoring Retry-After.
package llm
