package reload

import (
	"io"
	"sync"
	"time"

	"github.com/0xmhha/browsersync/pkg/display"
	"github.com/0xmhha/browsersync/pkg/logger"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// MultiSink publishes every event to each sink in order.
type MultiSink []watcher.Sink

// Publish implements watcher.Sink.
func (m MultiSink) Publish(topic string, event watcher.ChangeEvent) {
	for _, s := range m {
		if s != nil {
			s.Publish(topic, event)
		}
	}
}

// ConsoleSink writes events to w with a display formatter.
type ConsoleSink struct {
	mu        sync.Mutex
	w         io.Writer
	formatter display.Formatter
	logger    logger.Logger
	now       func() time.Time
}

// NewConsoleSink creates a sink that prints events.
func NewConsoleSink(w io.Writer, f display.Formatter, log logger.Logger) *ConsoleSink {
	if log == nil {
		log = logger.Noop()
	}
	return &ConsoleSink{
		w:         w,
		formatter: f,
		logger:    log,
		now:       time.Now,
	}
}

// Publish implements watcher.Sink.
func (c *ConsoleSink) Publish(_ string, event watcher.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.formatter.FormatEvent(c.w, event, c.now()); err != nil {
		c.logger.Debug("failed to print event", "filename", event.Filename, "error", err)
	}
}
