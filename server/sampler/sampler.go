// Package sampler periodically reads host CPU, memory, disk, temperature,
// and internet reachability, writes the sample into the state store, and
// triggers a system_status broadcast.
package sampler

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/lyralabs/lyra/server/observability"
	"github.com/lyralabs/lyra/server/store"
)

// Broadcaster is the push surface the sampler needs from the session hub.
type Broadcaster interface {
	BroadcastStatus()
}

// Config holds the sampling schedule.
type Config struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	ProbeAddr    string
}

// DefaultConfig returns the default schedule: sample every 30s, bound the
// reachability probe to 3s so a network stall can never push the loop past
// one interval.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		ProbeTimeout: 3 * time.Second,
		ProbeAddr:    "8.8.8.8:53",
	}
}

// sources are the individual metric readers. Split out so tests can simulate
// a single source failing without faking the whole host.
type sources struct {
	cpuPercent  func(ctx context.Context) (float64, error)
	memPercent  func(ctx context.Context) (float64, error)
	diskPercent func(ctx context.Context) (float64, error)
	temperature func(ctx context.Context) (*float64, error)
	uptime      func(ctx context.Context) (float64, error)
	reachable   func(ctx context.Context) bool
}

// Sampler owns the periodic sampling loop. It is the only writer of the
// store's metrics field.
type Sampler struct {
	cfg   Config
	store *store.Store
	sink  Broadcaster
	log   *zap.Logger
	src   sources
}

// New builds a Sampler reading real host metrics via gopsutil.
func New(cfg Config, st *store.Store, sink Broadcaster, log *zap.Logger) *Sampler {
	s := &Sampler{
		cfg:   cfg,
		store: st,
		sink:  sink,
		log:   log.Named("sampler"),
	}
	s.src = sources{
		cpuPercent:  readCPUPercent,
		memPercent:  readMemPercent,
		diskPercent: readDiskPercent,
		temperature: readTemperature,
		uptime:      readUptime,
		reachable:   s.probeInternet,
	}
	return s
}

// Run samples on the configured interval until ctx is canceled. One sample
// is taken immediately so clients have data before the first tick.
func (s *Sampler) Run(ctx context.Context) {
	s.log.Info("sampler started", zap.Duration("interval", s.cfg.Interval))

	s.sampleAndPublish(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sampler stopped")
			return
		case <-ticker.C:
			s.sampleAndPublish(ctx)
		}
	}
}

func (s *Sampler) sampleAndPublish(ctx context.Context) {
	start := time.Now()
	m := s.sample(ctx)
	observability.SampleDuration.Observe(time.Since(start).Seconds())

	s.store.SetMetrics(m)
	s.sink.BroadcastStatus()
}

// sample reads every source. A single failing source yields a zero value
// (nil for temperature) for that field only; the sample as a whole is never
// dropped.
func (s *Sampler) sample(ctx context.Context) store.Metrics {
	m := store.Metrics{SampledAt: time.Now()}

	var err error
	if m.CPUPercent, err = s.src.cpuPercent(ctx); err != nil {
		s.log.Warn("cpu read failed", zap.Error(err))
	}
	if m.MemoryPercent, err = s.src.memPercent(ctx); err != nil {
		s.log.Warn("memory read failed", zap.Error(err))
	}
	if m.DiskPercent, err = s.src.diskPercent(ctx); err != nil {
		s.log.Warn("disk read failed", zap.Error(err))
	}
	if m.TemperatureCelsius, err = s.src.temperature(ctx); err != nil {
		// Common on hosts without exposed sensors; not a failure worth more
		// than debug noise.
		s.log.Debug("temperature unavailable", zap.Error(err))
		m.TemperatureCelsius = nil
	}
	if m.UptimeSeconds, err = s.src.uptime(ctx); err != nil {
		s.log.Warn("uptime read failed", zap.Error(err))
	}
	m.InternetConnected = s.src.reachable(ctx)

	return m
}

func readCPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func readMemPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func readDiskPercent(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

func readUptime(ctx context.Context) (float64, error) {
	up, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return float64(up), nil
}
