package xlog4

// Observer pattern

// ConfigChange describes a configuration swap on a LoggerContext. Previous
// has been stopped by the time observers run.
type ConfigChange struct {
	Context  string
	Previous *Configuration
	Current  *Configuration
}

// Observer receives configuration changes. Implementations MUST be
// concurrency-safe.
type Observer interface {
	OnConfig(c ConfigChange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c ConfigChange)

func (f ObserverFunc) OnConfig(c ConfigChange) { f(c) }
