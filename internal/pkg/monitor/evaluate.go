package monitor

// Evaluate returns the conditions a sample raises under cfg, always in the
// order monitor, loadavg1, loadavg5, loadavg15, freemem, uptime.
func Evaluate(s Sample, cfg Config) []Condition {
	conds := make([]Condition, 0, 6)

	if !cfg.Silent {
		conds = append(conds, CondMonitor)
	}
	if s.LoadAvg[0] > cfg.Critical1 {
		conds = append(conds, CondLoadAvg1)
	}
	if s.LoadAvg[1] > cfg.Critical5 {
		conds = append(conds, CondLoadAvg5)
	}
	if s.LoadAvg[2] > cfg.Critical15 {
		conds = append(conds, CondLoadAvg15)
	}
	if float64(s.FreeMem) < FreeMemThreshold(cfg.FreeMem, s.TotalMem) {
		conds = append(conds, CondFreeMem)
	}
	if cfg.Uptime > 0 && s.Uptime > cfg.Uptime {
		conds = append(conds, CondUptime)
	}

	return conds
}

// FreeMemThreshold resolves the freemem option against the total memory of
// the current sample: below 1 it is a fraction of total, otherwise bytes.
func FreeMemThreshold(freemem float64, totalMem uint64) float64 {
	if freemem < 1 {
		return freemem * float64(totalMem)
	}
	return freemem
}
