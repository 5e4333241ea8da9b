package perm

type PermsOpt func(*Perms)

func WithLevels(levels map[string]int) PermsOpt {
	return func(p *Perms) {
		p.levels = levels
	}
}

// WithSystemAccounts grants the given accounts level for as long as the
// process runs. Level zero means the supreme level.
func WithSystemAccounts(accounts []string, level int) PermsOpt {
	return func(p *Perms) {
		p.systemAccounts = accounts
		p.systemLevel = level
	}
}
