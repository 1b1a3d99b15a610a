package control

import "strings"

// Variable is one name=value pair of a variable list
type Variable struct {
	Name  string
	Value string
}

// ParseVariables splits a READVAR data section into its name=value pairs,
// preserving their order. Pairs are separated by commas with optional
// whitespace (ntpd inserts ", " and "\r\n"). Values in double quotes may
// contain commas and equals signs and are returned unquoted.
func ParseVariables(text string) ([]Variable, error) {
	text = trimText(text)
	if text == "" {
		return nil, &ParseError{Input: text, Reason: "empty variable list"}
	}

	var (
		vars     []Variable
		start    int
		inQuotes bool
	)
	for i := 0; i <= len(text); i++ {
		if i < len(text) {
			switch text[i] {
			case '"':
				inQuotes = !inQuotes
				continue
			case ',':
				if inQuotes {
					continue
				}
			default:
				continue
			}
		}

		token := trimText(text[start:i])
		start = i + 1
		if token == "" {
			continue
		}

		v, err := parsePair(token)
		if err != nil {
			err.Input = text
			return nil, err
		}
		vars = append(vars, v)
	}

	if inQuotes {
		return nil, &ParseError{Input: text, Reason: "unterminated quoted value"}
	}
	if len(vars) == 0 {
		return nil, &ParseError{Input: text, Reason: "no variables found"}
	}

	return vars, nil
}

func parsePair(token string) (Variable, *ParseError) {
	eq := strings.IndexByte(token, '=')
	if eq < 0 {
		return Variable{}, &ParseError{Reason: "expected name=value, got " + quote(token)}
	}

	name := trimText(token[:eq])
	if name == "" {
		return Variable{}, &ParseError{Reason: "missing variable name"}
	}
	if strings.ContainsAny(name, " \t\"") {
		return Variable{}, &ParseError{Reason: "invalid variable name " + quote(name)}
	}

	value := trimText(token[eq+1:])
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}

	return Variable{Name: name, Value: value}, nil
}

// Extract looks up each requested name in a variable list and returns the
// raw values by name. The first occurrence of a name wins.
func Extract(text string, names ...string) (map[string]string, error) {
	vars, err := ParseVariables(text)
	if err != nil {
		return nil, err
	}

	index := make(map[string]string, len(vars))
	for _, v := range vars {
		if _, seen := index[v.Name]; !seen {
			index[v.Name] = v.Value
		}
	}

	values := make(map[string]string, len(names))
	for _, name := range names {
		value, ok := index[name]
		if !ok {
			return nil, &ParseError{Field: name, Input: text, Reason: "variable not present in response"}
		}
		values[name] = value
	}

	return values, nil
}

func quote(s string) string {
	return `"` + truncate(s, 32) + `"`
}
