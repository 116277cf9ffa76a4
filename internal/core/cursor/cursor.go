// Package cursor tracks the resume position of the indexer and the state of
// the indexing pass.
//
// # Purpose
//
// The cursor is the newest transaction signature whose effects, and those of
// every older signature, are committed. A restarted indexer lists only what
// is newer than the cursor.
//
// # Key Features
//
// State Machine - Only allows valid pass transitions:
//
//	IDLE → FETCHING → APPLYING → IDLE (valid)
//	IDLE → APPLYING (invalid - a pass always lists first)
//
// Atomic Updates - The cursor is saved only after a page is committed.
//
// # Quick Start
//
//	manager := cursor.NewManager(cursorRepo, programID)
//	last, _ := manager.Load(ctx)
//
//	pass := manager.BeginPass()
//	pass.SetState(cursor.StateFetching, "tick")
//	// ... list and apply ...
//	manager.Advance(ctx, newestCommitted, slot)
//	pass.SetState(cursor.StateIdle, "pass complete")
//
// # Package Structure
//
//   - state.go   - State machine definitions and valid transitions
//   - manager.go - Cursor persistence and state enforcement
//   - metrics.go - Recent transitions and pass timing
package cursor
