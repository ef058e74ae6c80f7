package watch

import (
	"fmt"
	"io"
	"strings"

	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/monitor"
	"github.com/endorses/osmon/internal/pkg/output"
)

// ParseEvents resolves event names to conditions. No names means every
// condition.
func ParseEvents(names []string) ([]monitor.Condition, error) {
	if len(names) == 0 {
		return append([]monitor.Condition(nil), monitor.Conditions...), nil
	}

	seen := make(map[monitor.Condition]bool, len(names))
	conds := make([]monitor.Condition, 0, len(names))
	for _, name := range names {
		c := monitor.Condition(strings.ToLower(strings.TrimSpace(name)))
		if !c.Valid() {
			return nil, fmt.Errorf("unknown event %q (valid: %s)", name, validNames())
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		conds = append(conds, c)
	}
	return conds, nil
}

func validNames() string {
	names := make([]string, len(monitor.Conditions))
	for i, c := range monitor.Conditions {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// printer writes events as JSON lines. The monitor calls handlers one at a
// time, so print needs no locking of its own.
type printer struct {
	out    io.Writer
	pretty bool
}

func newPrinter(out io.Writer, pretty bool) *printer {
	return &printer{out: out, pretty: pretty}
}

func (p *printer) print(ev monitor.Event) {
	if err := output.WriteJSON(p.out, ev, p.pretty); err != nil {
		logger.Error("Failed to write event", "type", ev.Type, "error", err)
	}
}
