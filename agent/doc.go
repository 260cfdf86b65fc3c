// Package agent defines the immutable description of a workflow participant
// (Definition) and the name-unique Registry the engine resolves delegation
// targets against.
//
// A Definition binds a name to instructions, a model, an ordered tool list
// and a terminal flag. Definitions carry no per-run state: the same
// Definition serves every concurrent run of a workflow, so the Registry is
// sealed before the first run and read without locks afterwards.
package agent
