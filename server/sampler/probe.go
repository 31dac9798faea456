package sampler

import (
	"context"
	"net"

	"github.com/shirou/gopsutil/v3/host"
)

// probeInternet reports whether the host can reach the probe address within
// the configured timeout. On timeout it reports false rather than blocking
// the sampling loop.
func (s *Sampler) probeInternet(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", s.cfg.ProbeAddr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// readTemperature returns the first plausible sensor reading, or nil where
// the host exposes none. nil is distinct from 0 and must stay that way.
func readTemperature(ctx context.Context) (*float64, error) {
	stats, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range stats {
		if st.Temperature > 0 {
			t := st.Temperature
			return &t, nil
		}
	}
	return nil, nil
}
