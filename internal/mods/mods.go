// Package mods canonicalizes osu! modifier combinations into the closed set
// of leaderboard categories.
package mods

import (
	"sort"
	"strings"

	"osutrack-bot/internal/apperr"
)

// Combo is a canonical category label such as "NM", "HDDT" or "SUBMITTED".
type Combo string

const (
	NoMod     Combo = "NM"
	Submitted Combo = "SUBMITTED"
	Combined  Combo = "COMBINED"
)

// canonical scoring mods in label order
var order = []string{"EZ", "HD", "HT", "DT", "HR", "FL"}

var aliases = map[string]string{
	"NC": "DT",
	"DC": "HT",
}

var noops = map[string]bool{
	"NF": true,
	"SO": true,
	"SD": true,
	"PF": true,
	"CL": true,
	"NM": true,
}

var conflicts = [][2]string{
	{"EZ", "HR"},
	{"HT", "DT"},
}

var (
	all   []Combo
	valid map[Combo]bool
)

func init() {
	all = []Combo{NoMod}
	for mask := 1; mask < 1<<len(order); mask++ {
		set := map[string]bool{}
		for i, m := range order {
			if mask&(1<<i) != 0 {
				set[m] = true
			}
		}
		if conflicting(set) {
			continue
		}
		all = append(all, label(set))
	}
	sortByWidth(all[1:])
	all = append(all, Submitted, Combined)

	valid = make(map[Combo]bool, len(all))
	for _, c := range all {
		valid[c] = true
	}
}

// sortByWidth orders labels by mod count, keeping generation order otherwise.
func sortByWidth(cs []Combo) {
	sort.SliceStable(cs, func(i, j int) bool { return len(cs[i]) < len(cs[j]) })
}

func conflicting(set map[string]bool) bool {
	for _, pair := range conflicts {
		if set[pair[0]] && set[pair[1]] {
			return true
		}
	}
	return false
}

// label joins known mods in canonical order and appends unknown ones sorted.
func label(set map[string]bool) Combo {
	b := strings.Builder{}
	for _, m := range order {
		if set[m] {
			b.WriteString(m)
		}
	}
	var unknown []string
	for m := range set {
		if !isCanonical(m) {
			unknown = append(unknown, m)
		}
	}
	sort.Strings(unknown)
	for _, m := range unknown {
		b.WriteString(m)
	}
	if b.Len() == 0 {
		return NoMod
	}
	return Combo(b.String())
}

func isCanonical(m string) bool {
	for _, o := range order {
		if o == m {
			return true
		}
	}
	return false
}

// Canonicalize accepts a []string of mod tokens or an already concatenated
// string ("HDNC", "hd+dt") and returns its category label.
func Canonicalize(raw any) (Combo, error) {
	var tokens []string
	switch v := raw.(type) {
	case Combo:
		return Canonicalize(string(v))
	case string:
		s := strings.ToUpper(strings.TrimSpace(v))
		if c, ok := special(s); ok {
			return c, nil
		}
		split, err := splitTokens(s)
		if err != nil {
			return "", err
		}
		tokens = split
	case []string:
		for _, t := range v {
			t = strings.ToUpper(strings.TrimSpace(t))
			if c, ok := special(t); ok {
				return c, nil
			}
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	default:
		return "", apperr.InvalidInput("mods: expected string or []string, got %T", raw)
	}
	return fromTokens(tokens), nil
}

// MustCanonicalize is for constant inputs known to be well formed.
func MustCanonicalize(raw any) Combo {
	c, err := Canonicalize(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func special(s string) (Combo, bool) {
	switch Combo(s) {
	case Submitted:
		return Submitted, true
	case Combined:
		return Combined, true
	}
	return "", false
}

func splitTokens(s string) ([]string, error) {
	s = strings.NewReplacer("+", "", ",", "", " ", "").Replace(s)
	if len(s)%2 != 0 {
		return nil, apperr.InvalidInput("mods: malformed combination %q", s)
	}
	tokens := make([]string, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		t := s[i : i+2]
		for _, r := range t {
			if r < 'A' || r > 'Z' {
				return nil, apperr.InvalidInput("mods: malformed combination %q", s)
			}
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func fromTokens(tokens []string) Combo {
	set := map[string]bool{}
	for _, t := range tokens {
		if a, ok := aliases[t]; ok {
			t = a
		}
		if noops[t] {
			continue
		}
		set[t] = true
	}
	return label(set)
}

func IsValid(label Combo) bool { return valid[label] }

// All returns every valid label: NM, the mod combinations, SUBMITTED, COMBINED.
func All() []Combo {
	out := make([]Combo, len(all))
	copy(out, all)
	return out
}

// Categories is All without the synthetic COMBINED leaderboard.
func Categories() []Combo {
	out := make([]Combo, 0, len(all)-1)
	for _, c := range all {
		if c != Combined {
			out = append(out, c)
		}
	}
	return out
}

// Primary is Categories without SUBMITTED.
func Primary() []Combo {
	out := make([]Combo, 0, len(all)-2)
	for _, c := range all {
		if c != Combined && c != Submitted {
			out = append(out, c)
		}
	}
	return out
}

func (c Combo) String() string { return string(c) }
