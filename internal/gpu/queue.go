package gpu

import "strings"

// QueueType identifies one of the hardware queue families a pass runs on.
type QueueType uint8

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueTransfer
	// QueueCount is the number of real queues. It doubles as the "no owner"
	// sentinel, see QueueNone.
	QueueCount
)

// QueueNone marks a resource that no queue currently owns.
const QueueNone = QueueCount

var queueNames = [...]string{"graphics", "compute", "transfer", "none"}

func (q QueueType) String() string {
	if int(q) < len(queueNames) {
		return queueNames[q]
	}
	return "unknown"
}

// ParseQueueType maps the textual name used in frame files and logs back to
// a QueueType.
func ParseQueueType(s string) (QueueType, bool) {
	for i, n := range queueNames[:QueueCount] {
		if strings.EqualFold(n, s) {
			return QueueType(i), true
		}
	}
	return QueueNone, false
}

// QueueFlags is a set of queues, used for resource sharing.
type QueueFlags uint8

// QueueFlagsOf builds a set from individual queues.
func QueueFlagsOf(qs ...QueueType) QueueFlags {
	var f QueueFlags
	for _, q := range qs {
		f |= 1 << q
	}
	return f
}

func (f QueueFlags) Has(q QueueType) bool { return f&(1<<q) != 0 }

func (f QueueFlags) Count() int {
	n := 0
	for q := QueueType(0); q < QueueCount; q++ {
		if f.Has(q) {
			n++
		}
	}
	return n
}

func (f QueueFlags) String() string {
	var parts []string
	for q := QueueType(0); q < QueueCount; q++ {
		if f.Has(q) {
			parts = append(parts, q.String())
		}
	}
	return strings.Join(parts, "|")
}
