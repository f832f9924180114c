package transport

import (
	applog "analyser/internal/log"
)

// LoggingTransport implements the Transport interface by logging a summary
// of every frame at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the loudest bin of the frame.
func (lt *LoggingTransport) Send(frame Frame) error {
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	peak, value := 0, byte(0)
	for i, b := range frame.Bytes {
		if b > value {
			peak, value = i, b
		}
	}
	applog.Debugf("LOG_TRANSPORT: %s #%d bins=%d peak=%d (%d)",
		frame.Analyser, frame.Sequence, len(frame.Bytes), peak, value)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
