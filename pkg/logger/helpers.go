package logger

// MaskUsername keeps the first two characters of an account name
func MaskUsername(name string) string {
	if len(name) <= 2 {
		return "**"
	}
	return name[:2] + "***"
}

// LogStage logs the start of a pipeline stage
func LogStage(l Logger, stage string, fields map[string]interface{}) {
	merged := map[string]interface{}{"stage": stage}
	for k, v := range fields {
		merged[k] = v
	}
	l.InfoWithFields("Stage started", merged)
}

// OrGlobal returns l, or the global logger when l is nil
func OrGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                    {}
func (n nopLogger) Info(string)                                     {}
func (n nopLogger) Warn(string)                                     {}
func (n nopLogger) Error(string)                                    {}
func (n nopLogger) WithField(string, interface{}) Logger            { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger        { return n }
func (n nopLogger) WithError(error) Logger                          { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{})  {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})   {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})   {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{})  {}
