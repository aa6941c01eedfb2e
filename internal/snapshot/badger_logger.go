package snapshot

import "uaspace/internal/logger"

// badgerLogger routes badger's internal logging through the logger
// package. Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Default.Logf(logger.LevelError, "badger", format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Default.Logf(logger.LevelWarn, "badger", format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Default.Logf(logger.LevelDebug, "badger", format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Default.Logf(logger.LevelDebug, "badger", format, args...)
}
