// Package services defines shared utilities consumed by the import,
// matching, and execution stages.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     into scope-fatal versus locally-counted conditions.
//   - The LLM subpackage wrapping the chat-completions API used for
//     AI-assisted match classification.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the engine.
package services
