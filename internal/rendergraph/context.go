package rendergraph

// ReadPolicy decides what happens when a transient resource is read before
// any pass wrote it.
type ReadPolicy uint8

const (
	// ReadIgnore treats the contents as undefined and carries on.
	ReadIgnore ReadPolicy = iota
	// ReadFail aborts the frame with ErrUninitializedRead.
	ReadFail
)

// Options tune the sync planner.
type Options struct {
	// EventDistance is the minimum number of scheduled passes between a
	// producer and a same-queue consumer for the dependency to be carried
	// by an event instead of the consumer's pipeline barrier. A negative
	// value disables events.
	EventDistance int
	// UninitializedReads selects the ReadPolicy.
	UninitializedReads ReadPolicy
}

// DefaultOptions returns the planner defaults.
func DefaultOptions() Options {
	return Options{EventDistance: 1, UninitializedReads: ReadIgnore}
}

// Context carries the collaborators Execute needs. It replaces any global
// device state.
type Context struct {
	Device  Device
	Queues  QueueTable
	Options Options
}
