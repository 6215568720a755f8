package stats

import (
	"sync"
)

type Stage string

const (
	StageScan  Stage = "scan"
	StageIndex Stage = "index"
)

type EventType string

const (
	EventTypeScanned   EventType = "scanned"
	EventTypeIndexed   EventType = "indexed"
	EventTypeDiscarded EventType = "discarded"
	EventTypeIntegrity EventType = "integrity"
	EventTypeError     EventType = "error"
)

type Event struct {
	Stage  Stage
	Type   EventType
	UID    uint32
	Offset int64
	Bytes  int64
	Err    error
}

type Summary struct {
	Scanned   int
	Indexed   int
	Discarded int
	Integrity int
	Errors    int
	Bytes     int64
	LastUID   uint32
	LastError error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"indexed", s.Indexed,
		"discarded", s.Discarded,
		"integrity", s.Integrity,
		"errors", s.Errors,
		"bytes", s.Bytes,
	}
	if s.LastUID != 0 {
		attrs = append(attrs, "lastUID", s.LastUID)
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector aggregates append events. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	summary Summary
	metrics *Metrics
}

// NewCollector returns a Collector that also feeds metrics when non-nil.
func NewCollector(metrics *Metrics) *Collector {
	return &Collector{metrics: metrics}
}

func (c *Collector) Observe(evt Event) {
	c.apply(evt)
	if c.metrics != nil {
		c.metrics.observeEvent(evt)
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeIndexed:
		c.summary.Indexed++
		c.summary.Bytes += evt.Bytes
		c.summary.LastUID = evt.UID
	case EventTypeDiscarded:
		c.summary.Discarded++
	case EventTypeIntegrity:
		c.summary.Integrity++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}
