// Package vkdevice records render graph commands into Vulkan command
// buffers through github.com/vulkan-go/vulkan.
//
// It covers the recording half of the device contract: flag and enum
// conversion, an Encoder that implements rendergraph.CommandEncoder on top of
// a vk.CommandBuffer, render pass creation from a gpu.RenderPassKey, and a
// pool of vk.Event objects. Object lifetimes (memory, images, descriptor
// sets) stay with the application, which exposes them through a Resolver.
//
// vulkan-go predates the ray tracing and acceleration structure extensions,
// so the matching stage and access bits are defined locally and the
// encoder reports the corresponding commands as unsupported.
package vkdevice
