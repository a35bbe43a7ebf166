// Package tts requests one-shot speech for a single message.
package tts

import (
	"fmt"
	"regexp"
)

// Pronunciation replaces a literal word before synthesis.
type Pronunciation struct {
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
	IgnoreCase  bool   `mapstructure:"ignore_case"`
}

// DefaultPronunciations spell out brand names the voice gets wrong.
var DefaultPronunciations = []Pronunciation{
	{Pattern: "Codenyl", Replacement: "Code-nile", IgnoreCase: true},
	{Pattern: "SIBO", Replacement: "See-bo"},
	{Pattern: "sibo", Replacement: "see-bo"},
	{Pattern: "Aaradhy", Replacement: "Ah-rad-hee", IgnoreCase: true},
}

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Rewriter applies pronunciations in order.
type Rewriter struct {
	rules []rule
}

func NewRewriter(ps []Pronunciation) (*Rewriter, error) {
	rw := &Rewriter{rules: make([]rule, 0, len(ps))}
	for _, p := range ps {
		if p.Pattern == "" {
			return nil, fmt.Errorf("pronunciation for %q has empty pattern", p.Replacement)
		}
		expr := regexp.QuoteMeta(p.Pattern)
		if p.IgnoreCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pronunciation %q: %w", p.Pattern, err)
		}
		rw.rules = append(rw.rules, rule{re: re, repl: p.Replacement})
	}
	return rw, nil
}

func (r *Rewriter) Apply(text string) string {
	if r == nil {
		return text
	}
	for _, ru := range r.rules {
		text = ru.re.ReplaceAllLiteralString(text, ru.repl)
	}
	return text
}
