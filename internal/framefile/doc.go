// Package framefile loads HCL frame descriptions and declares them onto a
// render graph.
//
// A frame file lists the resources of one frame and the passes that use
// them, in submission order:
//
//	import_texture "swapchain" {
//	  format      = "bgra8_unorm"
//	  width       = var.width
//	  height      = var.height
//	  presentable = true
//	}
//
//	texture "gbuffer" {
//	  format = "rgba16_float"
//	  width  = var.width
//	  height = var.height
//	}
//
//	pass "geometry" {
//	  kind  = "raster"
//	  color = ["gbuffer"]
//	  clear = true
//	}
//
// Resource names are logical: every pass that writes a name advances it to a
// new node version, so later passes automatically see the latest write.
package framefile
