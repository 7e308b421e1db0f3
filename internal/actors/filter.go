package actors

import "strings"

type FilterOptions struct {
	Kinds        []string
	FreeWords    string
	WildcardMode string // "fixed", "wildcard", "both"
}

func Filter(actors []Actor, opt FilterOptions) []Actor {
	var out []Actor
	for _, a := range actors {
		if opt.WildcardMode == "fixed" && a.Token.IsWildcard {
			continue
		}
		if opt.WildcardMode == "wildcard" && !a.Token.IsWildcard {
			continue
		}
		if len(opt.Kinds) > 0 {
			matched := false
			for _, k := range opt.Kinds {
				if strings.EqualFold(a.Kind, k) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if opt.FreeWords != "" {
			name := strings.ToLower(a.Name)
			ok := true
			for _, k := range strings.Fields(opt.FreeWords) {
				if !strings.Contains(name, strings.ToLower(k)) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
