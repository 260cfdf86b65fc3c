// Package core provides the domain types shared by every layer of agentflow:
//
//   - Message and Memory (the append-only, role-tagged conversation log of a run)
//   - UpdateEvent (progress records emitted after every workflow step)
//   - Run, Result and RunStatus (per-request workflow state)
//   - Content / Part (the normalized shape exchanged with models)
//   - ToolContext (the scoped surface handed to tool implementations)
//   - the sentinel errors callers match with errors.Is
//
// The package has no knowledge of concrete models, tools or transports. Engine
// orchestration lives in package engine; step execution in package flow.
package core
