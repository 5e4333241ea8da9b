package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-dbo/internal/driver"
	"github.com/pixil98/go-errors"
)

type Config struct {
	AutosaveInterval string        `json:"autosave_interval"`
	ConfigID         string        `json:"config_id"`
	Storage          StorageConfig `json:"storage"`
	Nats             NatsConfig    `json:"nats"`
	Perm             PermConfig    `json:"perm"`
	Metrics          MetricsConfig `json:"metrics"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.AutosaveInterval != "" {
		d, err := time.ParseDuration(c.AutosaveInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing autosave_interval: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("autosave_interval must be at least 1 second"))
		}
	}

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Perm.validate())
	el.Add(c.Metrics.validate())

	return el.Err()
}

func (c *Config) driverOpts() []driver.DriverOpt {
	if c.AutosaveInterval == "" {
		return nil
	}
	// Validated above.
	d, _ := time.ParseDuration(c.AutosaveInterval)
	return []driver.DriverOpt{driver.WithTickLength(d)}
}
