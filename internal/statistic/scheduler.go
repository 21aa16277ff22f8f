package statistic

import (
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"stride/internal/providers"
	"stride/internal/statistic/interfaces"
	"stride/internal/structures"
)

const gaugeInterval = 15 * time.Second

type Scheduler struct {
	config    *structures.Config
	logger    providers.Logger
	persister interfaces.PersisterInterface
	gauges    interfaces.GaugeSourceInterface
	metrics   providers.MetricsProviderInterface
	cron      *gron.Cron
	opsMu     sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		if err := s.flush(); err != nil {
			return
		}
		s.logger.Debugf(providers.TypeApp, "Flushed record store snapshot")
	})

	s.cron.AddFunc(gron.Every(gaugeInterval), s.RefreshGauges)

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()
	return s.persister.Load()
}

func (s *Scheduler) Persist() error {
	s.logger.Infof(providers.TypeApp, "Persisting record store...")
	return s.flush()
}

// RefreshGauges publishes the current session count and outbox depth.
func (s *Scheduler) RefreshGauges() {
	s.metrics.SetSessionsTotal(s.gauges.SessionCount())
	s.metrics.SetOutboxPending(s.gauges.PendingWrites())
}

func (s *Scheduler) flush() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := time.Now()
	err := s.persister.Flush()
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.metrics.IncPersistenceFailures("flush")
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, persister interfaces.PersisterInterface, gauges interfaces.GaugeSourceInterface, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:    config,
		logger:    logger,
		persister: persister,
		gauges:    gauges,
		metrics:   metrics,
	}
}

type noopPersister struct{}

func (noopPersister) Load() error  { return nil }
func (noopPersister) Flush() error { return nil }

// NewPersister returns the store itself when it keeps a snapshot, and a
// no-op for drivers that write through to a database.
func NewPersister(store any) interfaces.PersisterInterface {
	if p, ok := store.(interfaces.PersisterInterface); ok {
		return p
	}
	return noopPersister{}
}
