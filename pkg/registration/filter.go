package registration

import "strings"

// Filter narrows the admin players table. Text is searched in name, dni and team; category and team
// must match exactly, ignoring case. Zero value matches everything.
type Filter struct {
	Text     string
	Category string
	Team     string
}

func (f Filter) IsEmpty() bool {
	return f.Text == "" && f.Category == "" && f.Team == ""
}

func (f Filter) Match(p Player) bool {
	text := strings.ToLower(f.Text)
	if text != "" {
		haystack := strings.ToLower(p.FullName + " " + p.Dni + " " + p.TeamName)
		if !strings.Contains(haystack, text) {
			return false
		}
	}

	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}

	if f.Team != "" && !strings.EqualFold(p.TeamName, f.Team) {
		return false
	}

	return true
}

// Apply keeps the order of the input.
func (f Filter) Apply(players []Player) []Player {
	if f.IsEmpty() {
		return players
	}

	out := make([]Player, 0, len(players))
	for _, p := range players {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
