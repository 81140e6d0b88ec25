// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"

	"tapeloop/internal/controller"
	"tapeloop/internal/log"
)

// LoggingTransport implements the Transport interface by logging a compact
// line per snapshot at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	switch s := data.(type) {
	case controller.Snapshot:
		log.Debugf("LOG_TRANSPORT: %s", summarize(&s))
	case *controller.Snapshot:
		log.Debugf("LOG_TRANSPORT: %s", summarize(s))
	default:
		log.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

func summarize(s *controller.Snapshot) string {
	return fmt.Sprintf("index=%d beat=%d primary=%d rec=%t thru=%t dropped=%d/%d",
		s.AudioIndex, s.BeatIndex, s.Primary+1, s.Recording, s.PlayThrough, s.Dropped, s.DroppedEvents)
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
