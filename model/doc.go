// Package model defines the provider-agnostic abstractions for the inference
// call made by every workflow step.
//
// Core goals:
//   - One Generate method for every provider, returning a response channel and an error channel
//   - Normalized tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Request/response shapes that stay transport independent
//   - Deterministic test doubles (ScriptedModel)
//
// Providers (openai, anthropic, groq) live in sub packages so the engine never
// imports a vendor SDK.
package model
