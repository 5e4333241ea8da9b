package command

import (
	"fmt"

	"github.com/pixil98/go-dbo/internal/perm"
	"github.com/pixil98/go-dbo/internal/storage"
	"github.com/pixil98/go-errors"
)

type PermConfig struct {
	Levels         map[string]int `json:"levels"`
	SystemAccounts []string       `json:"system_accounts"`
	SystemLevel    int            `json:"system_level"`
}

func (c *PermConfig) validate() error {
	el := errors.NewErrorList()

	for name, level := range c.Levels {
		if name == "" {
			el.Add(fmt.Errorf("perm: level names must not be empty"))
		}
		if level < 0 {
			el.Add(fmt.Errorf("perm: level %s must not be negative", name))
		}
	}
	if c.SystemLevel < 0 {
		el.Add(fmt.Errorf("perm: system_level must not be negative"))
	}

	return el.Err()
}

func (c *PermConfig) buildPerms(store storage.Store) *perm.Perms {
	var opts []perm.PermsOpt
	if len(c.Levels) > 0 {
		opts = append(opts, perm.WithLevels(c.Levels))
	}
	if len(c.SystemAccounts) > 0 {
		opts = append(opts, perm.WithSystemAccounts(c.SystemAccounts, c.SystemLevel))
	}
	return perm.NewPerms(store, opts...)
}
