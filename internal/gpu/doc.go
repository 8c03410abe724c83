// Package gpu holds the plain value types shared by every layer of the render
// graph: queue kinds, pipeline stages, memory accesses, texture layouts,
// resource usages, descriptors and opaque device object ids.
//
// Nothing in this package talks to a device. The types are small, comparable
// and cheap to copy so they can flow through the compiler, the sync planner
// and the device backends without conversion.
package gpu
