// Package service supervises a set of concurrently running tasks.
//
// Overview
// The Supervisor creates one Runner per model.TaskSpec and starts them all
// (optionally bounded by MaxParallel). Every Runner owns one process.Handle
// and two lines.Splitter values, one per output stream, and turns raw output
// into model.Event values sent to a single fan-in channel. The Supervisor is
// the only consumer of that channel and the only caller of the Presenter.
//
// Data flow:
//
//	Supervisor               Runner{spec}              process.Handle
//	    |                        |                          |
//	    | RunAll -> go Run() --->| Spawn() ---------------->| sh -c <command>
//	    |                        |<--------- Chunk ---------| stdout/stderr writers
//	    |<---- Started/Line -----| Splitter.Feed            |
//	    |                        |<--- chunks closed -------| (process exits)
//	    |<------ Exited ---------| Flush + Wait             |
//	    | Presenter.Present      |                          |
//
// Modes:
//   - interleaved: events are presented as they arrive.
//   - grouped: events of a task are held back until it exits and presented
//     as one block (stdout lines before stderr lines), blocks in completion
//     order.
//
// Invariants:
//   - Events of one task keep their order.
//   - Each task produces exactly one Exited event, after its last Line.
//   - A task which cannot be started is reported with model.ExitSpawnFailed
//     and does not affect the others.
//   - Once the context is cancelled no process is spawned anymore; running
//     ones are terminated and, after the grace period, killed.
package service
