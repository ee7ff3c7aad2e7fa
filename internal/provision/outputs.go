package provision

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var outputLine = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)\s*=\s*(.*)$`)

// ParseOutputs extracts name/value pairs from the last "Outputs:" block of
// apply output. Color codes are stripped first. Quoted strings are
// unquoted; lists, maps and heredocs are kept as raw text.
func ParseOutputs(text string) map[string]string {
	text = ansi.Strip(text)
	outputs := make(map[string]string)

	idx := strings.LastIndex(text, "\nOutputs:")
	switch {
	case idx >= 0:
		text = text[idx+len("\nOutputs:"):]
	case strings.HasPrefix(text, "Outputs:"):
		text = text[len("Outputs:"):]
	default:
		return outputs
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		name    string
		closing string
		block   []string
	)
	for scanner.Scan() {
		line := scanner.Text()

		if closing != "" {
			block = append(block, line)
			if strings.TrimSpace(line) == closing {
				outputs[name] = strings.Join(block, "\n")
				closing = ""
			}
			continue
		}

		m := outputLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name = m[1]
		value := strings.TrimSpace(m[2])

		switch {
		case value == "[" || value == "{" || value == "tolist([" || value == "tomap({"):
			closing = closingFor(value)
			block = []string{value}
		case strings.HasPrefix(value, "<<"):
			closing = strings.TrimPrefix(strings.TrimPrefix(value, "<<"), "-")
			block = []string{value}
		default:
			outputs[name] = unquote(value)
		}
	}

	return outputs
}

func closingFor(open string) string {
	switch open {
	case "[":
		return "]"
	case "{":
		return "}"
	case "tolist([":
		return "])"
	default:
		return "})"
	}
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	}
	return v
}
