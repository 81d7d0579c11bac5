package config

import (
	"time"

	"github.com/secmon-lab/esr/pkg/service/metabolism"
	"github.com/urfave/cli/v3"
)

// Metabolism holds CLI flags for the background reflection process
type Metabolism struct {
	enabled         bool
	interval        time.Duration
	memoryThreshold int
}

// Flags returns CLI flags for metabolism configuration
func (m *Metabolism) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "metabolism",
			Usage:       "Enable the background reflection process",
			Value:       true,
			Sources:     cli.EnvVars("ESR_METABOLISM"),
			Destination: &m.enabled,
		},
		&cli.DurationFlag{
			Name:        "metabolism-interval",
			Usage:       "Periodic reflection interval",
			Value:       metabolism.DefaultInterval,
			Sources:     cli.EnvVars("ESR_METABOLISM_INTERVAL"),
			Destination: &m.interval,
		},
		&cli.IntFlag{
			Name:        "metabolism-memory-threshold",
			Usage:       "Pending thought count that forces a reflection pass",
			Value:       metabolism.DefaultMemoryThreshold,
			Sources:     cli.EnvVars("ESR_METABOLISM_MEMORY_THRESHOLD"),
			Destination: &m.memoryThreshold,
		},
	}
}

// Enabled reports whether the background process should run
func (m *Metabolism) Enabled() bool {
	return m.enabled
}

// Configure builds the metabolism worker over the given memory surface
func (m *Metabolism) Configure(memory metabolism.Memory) *metabolism.Worker {
	return metabolism.New(memory,
		metabolism.WithInterval(m.interval),
		metabolism.WithMemoryThreshold(m.memoryThreshold),
	)
}
