// Package fakegpu provides an in-memory implementation of the render graph's
// device, queue table and command encoder collaborators.
//
// # Purpose
//
// The render graph never talks to a driver directly. Everything it needs from
// the GPU goes through rendergraph.Device, rendergraph.QueueTable and
// rendergraph.CommandEncoder. This package implements those interfaces
// without a GPU so that frames can be compiled, recorded and inspected in
// tests and in the CLI's dry-run mode.
//
// # Characteristics
//
//   - **Recording:** every encoder keeps the commands it received, in order,
//     and queues keep every submission with the semaphores it waited on.
//   - **Generation-checked ids:** resource ids are packed handle.Handle values,
//     so using a destroyed buffer or texture is caught instead of aliasing a
//     newer one.
//   - **Thread-Safe:** resource creation is guarded by a RWMutex; the render
//     graph allocates transient resources from several goroutines.
//   - **Fault injection:** FailCreateAfter makes resource creation fail after
//     a number of successful calls.
//
// # Timeline semantics
//
// Each queue owns a timeline counter. Submit increments it and returns the
// new value as the signalled semaphore, which is what a Vulkan timeline
// semaphore per queue would do.
package fakegpu
