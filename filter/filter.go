// Package filter implements chat content moderation: masking of configured
// blocked terms and expr-based block rules evaluated per message.
package filter

import (
	"strings"
	"unicode/utf8"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/globals"
)

type Moderator struct {
	blockedTerms []string
	programs     []*vm.Program
}

// NewModerator compiles the configured block expressions. A broken expression
// is a configuration error and fails construction.
func NewModerator(cfg config.ModerationConfig) (*Moderator, error) {
	m := &Moderator{}
	for _, term := range cfg.BlockedTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			m.blockedTerms = append(m.blockedTerms, term)
		}
	}
	for _, e := range cfg.BlockExpressions {
		prog, err := expr.Compile(e, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, err
		}
		m.programs = append(m.programs, prog)
	}
	return m, nil
}

// Sanitize replaces every case-insensitive occurrence of a blocked term with
// a run of '*' of equal length.
func (m *Moderator) Sanitize(message string) string {
	for _, term := range m.blockedTerms {
		message = maskTerm(message, term)
	}
	return message
}

func maskTerm(message, term string) string {
	lower := strings.ToLower(message)
	var b strings.Builder
	start := 0
	for {
		idx := strings.Index(lower[start:], term)
		if idx < 0 {
			b.WriteString(message[start:])
			return b.String()
		}
		idx += start
		b.WriteString(message[start:idx])
		// one '*' per character, not per byte
		b.WriteString(strings.Repeat("*", utf8.RuneCountInString(term)))
		start = idx + len(term)
	}
}

// Blocked evaluates the configured block expressions against the message
// environment. A rule that fails to run is logged and skipped.
func (m *Moderator) Blocked(env Env) bool {
	for _, prog := range m.programs {
		out, err := expr.Run(prog, env)
		if err != nil {
			globals.AppLogger.Warn("could not run moderation rule", "error", err)
			continue
		}
		if blocked, ok := out.(bool); ok && blocked {
			return true
		}
	}
	return false
}
