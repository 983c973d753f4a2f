package dump

import "strings"

type Attribute struct {
	Name  string
	Value string
}

// Attributes keeps the order the attributes appear in the entry.
type Attributes []Attribute

// ParseAttributes reads "name: value" lines. Lines starting with whitespace or
// '+' continue the previous value; comment lines are skipped.
func ParseAttributes(text string) Attributes {
	var attrs Attributes
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || line[0] == '#' || line[0] == '%' {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' || line[0] == '+' {
			if len(attrs) == 0 {
				continue
			}
			cont := strings.TrimSpace(strings.TrimPrefix(line, "+"))
			last := &attrs[len(attrs)-1]
			switch {
			case cont == "":
			case last.Value == "":
				last.Value = cont
			default:
				last.Value += " " + cont
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		attrs = append(attrs, Attribute{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return attrs
}

// Get returns the first value of name, matched case-insensitively.
func (a Attributes) Get(name string) string {
	for _, attr := range a {
		if strings.EqualFold(attr.Name, name) {
			return attr.Value
		}
	}
	return ""
}

// All returns every value of name in order, including empty ones.
func (a Attributes) All(name string) []string {
	var out []string
	for _, attr := range a {
		if strings.EqualFold(attr.Name, name) {
			out = append(out, attr.Value)
		}
	}
	return out
}

// Key returns the value of the first attribute, the primary key of the entry.
func (a Attributes) Key() string {
	if len(a) == 0 {
		return ""
	}
	return a[0].Value
}
