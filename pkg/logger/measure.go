package logger

import "time"

// Measure starts timing the named operation and returns the function that
// stops it. Each call owns its own start time, so concurrent jobs may measure
// the same label without interfering.
//
//	stop := log.Measure("create collection")
//	defer stop()
func (l *Logger) Measure(label string, keysAndValues ...interface{}) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		elapsed := time.Since(start)
		l.SugaredLogger.Debugw("operation timing", append([]interface{}{"operation", label, "elapsed", elapsed}, keysAndValues...)...)
		return elapsed
	}
}
