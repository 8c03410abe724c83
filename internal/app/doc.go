// Package app wires the render graph to its collaborators and runs the frame
// loop: it loads a frame file, executes it against the recording device once
// per frame, and serves health and metrics endpoints while doing so.
package app
