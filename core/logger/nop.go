package logger

// Nop discards everything. Useful as a default and in tests.
type Nop struct{}

func (Nop) Debugf(string, ...any)        {}
func (Nop) Debugw(string, map[string]any) {}
func (Nop) Infof(string, ...any)         {}
func (Nop) Warnf(string, ...any)         {}
func (Nop) Errorf(string, ...any)        {}
