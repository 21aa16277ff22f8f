package interfaces

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
}

// PersisterInterface is implemented by record stores that keep their state
// in memory and write it out periodically.
type PersisterInterface interface {
	Load() error
	Flush() error
}

// GaugeSourceInterface reports the figures the scheduler publishes as gauges.
type GaugeSourceInterface interface {
	SessionCount() int
	PendingWrites() int
}
