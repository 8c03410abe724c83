// Package rendergraph compiles a frame's worth of GPU passes into correctly
// synchronized command submissions.
//
// # Why rendergraph Exists
//
// Callers describe a frame as passes that read and write named resource
// versions. They never write a barrier, an event or a semaphore by hand.
// Execute works out the rest:
//
//  1. Compile: derive pass dependencies, cull passes that contribute to no
//     external resource and fix an execution order (see passgraph).
//  2. Allocate: create transient buffers and textures with the union of the
//     usages their passes declared, and resolve imported ids.
//  3. Plan: walk the schedule with a per-resource ledger (see ledger) and
//     decide, for every access, whether a pipeline barrier, an event wait,
//     a semaphore wait or nothing at all is required.
//  4. Record and submit: open a command encoder per pass, emit the planned
//     synchronization, run the pass's record callback and submit.
//
// # Failure Model
//
// Declaration mistakes (a foreign node, a stale node version, a second
// writer) are programmer errors and panic with a *BuildError. Everything
// that can go wrong while executing (a dependency cycle, allocation
// failure, a record callback error) is returned from Execute, and in that
// case nothing from the frame reaches a queue.
//
// # Device Contract
//
// The package only talks to the GPU through the Device, QueueTable, Queue
// and CommandEncoder interfaces. The fakegpu package implements them in
// memory; vkdevice records the same commands with Vulkan.
package rendergraph
