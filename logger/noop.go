package logger

// Noop returns a logger that discards everything. Useful in tests and
// as a default before a real logger is configured.
func Noop() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) WithField(string, any) Logger     { return noopLogger{} }
func (noopLogger) WithFields(map[string]any) Logger { return noopLogger{} }
func (noopLogger) WithError(error) Logger           { return noopLogger{} }

func (noopLogger) Print(...any) {}
func (noopLogger) Trace(...any) {}
func (noopLogger) Debug(...any) {}
func (noopLogger) Info(...any)  {}
func (noopLogger) Warn(...any)  {}
func (noopLogger) Error(...any) {}
func (noopLogger) Fatal(...any) {}
func (noopLogger) Panic(...any) {}

func (noopLogger) Printf(string, ...any) {}
func (noopLogger) Tracef(string, ...any) {}
func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}
func (noopLogger) Fatalf(string, ...any) {}
func (noopLogger) Panicf(string, ...any) {}

func (noopLogger) SetLevel(Level)  {}
func (noopLogger) GetLevel() Level { return Disabled }
