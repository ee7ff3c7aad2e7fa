package deps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Specifier is a single version clause such as ">=2.0".
type Specifier struct {
	Op      string
	Version string
}

func (s Specifier) String() string { return s.Op + s.Version }

// Requirement is one dependency line of a requirements file.
type Requirement struct {
	Name       string
	Extras     []string
	Specifiers []Specifier
	URL        string
	Marker     string
	Line       int

	// Options are per-requirement installer options such as "--hash=...".
	Options []string
}

// NormalizedName returns the name folded the way package indexes compare it:
// lower case, with runs of "-", "_" and "." collapsed to "-".
func (r Requirement) NormalizedName() string {
	return NormalizeName(r.Name)
}

// Pinned returns the exact version for an "==" or "===" requirement.
func (r Requirement) Pinned() (string, bool) {
	if len(r.Specifiers) != 1 {
		return "", false
	}
	s := r.Specifiers[0]
	if (s.Op == "==" || s.Op == "===") && !strings.Contains(s.Version, "*") {
		return s.Version, true
	}
	return "", false
}

// File is a parsed requirements file.
type File struct {
	Requirements []Requirement

	// Options are installer option lines ("-r other.txt", "--index-url ...")
	// kept verbatim; pip interprets them itself.
	Options []string
}

// ParseError reports a malformed requirements line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

var (
	namePattern      = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)`)
	specifierPattern = regexp.MustCompile(`^(===|~=|==|!=|>=|<=|>|<)\s*([A-Za-z0-9.*+!_-]+)$`)
	separatorPattern = regexp.MustCompile(`[-_.]+`)
	optionPattern    = regexp.MustCompile(`\s+--?[A-Za-z]`)
	schemePattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
	namedURLPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\s*(\[[^\]]*\])?\s*@`)
)

var archiveSuffixes = []string{".whl", ".zip", ".tar.gz", ".tgz", ".tar.bz2"}

// NormalizeName folds a distribution name for comparison.
func NormalizeName(name string) string {
	return separatorPattern.ReplaceAllString(strings.ToLower(name), "-")
}

// ReadRequirements parses the requirements file at path.
func ReadRequirements(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open requirements: %w", err)
	}
	defer func() { _ = f.Close() }()

	parsed, err := ParseRequirements(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return parsed, nil
}

// ParseRequirements reads requirement lines from r. Blank lines and comments
// are skipped, backslash continuations are joined and option lines are kept
// as-is.
func ParseRequirements(r io.Reader) (*File, error) {
	file := &File{}
	scanner := bufio.NewScanner(r)

	var (
		lineNo  int
		start   int
		pending strings.Builder
	)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if pending.Len() == 0 {
			start = lineNo
		}

		if strings.HasSuffix(raw, `\`) {
			pending.WriteString(strings.TrimSuffix(raw, `\`))
			pending.WriteString(" ")
			continue
		}
		pending.WriteString(raw)
		text := pending.String()
		pending.Reset()

		if err := file.addLine(start, text); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending.Len() > 0 {
		if err := file.addLine(start, pending.String()); err != nil {
			return nil, err
		}
	}

	return file, nil
}

func (f *File) addLine(lineNo int, text string) error {
	text = strings.TrimSpace(stripComment(text))
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "-") {
		f.Options = append(f.Options, text)
		return nil
	}

	req, err := parseRequirement(text)
	if err != nil {
		return &ParseError{Line: lineNo, Text: text, Reason: err.Error()}
	}
	req.Line = lineNo
	f.Requirements = append(f.Requirements, req)
	return nil
}

// stripComment drops a "#" comment. A "#" inside a token, as in a URL
// fragment, is not a comment.
func stripComment(s string) string {
	for i, c := range s {
		if c != '#' {
			continue
		}
		if i == 0 || s[i-1] == ' ' || s[i-1] == '\t' {
			return s[:i]
		}
	}
	return s
}

// splitOptions separates trailing per-requirement options from the
// requirement itself.
func splitOptions(text string) (string, []string) {
	loc := optionPattern.FindStringIndex(text)
	if loc == nil {
		return text, nil
	}
	return strings.TrimSpace(text[:loc[0]]), strings.Fields(text[loc[0]:])
}

// isDirectReference reports whether text is a bare URL, VCS reference,
// archive or local path rather than a named requirement.
func isDirectReference(text string) bool {
	if namedURLPattern.MatchString(text) {
		return false
	}
	head, _, _ := strings.Cut(text, " ")
	switch {
	case schemePattern.MatchString(head):
		return true
	case strings.HasPrefix(head, "."), strings.HasPrefix(head, "~"), strings.ContainsAny(head, `/\`):
		return true
	}
	lower := strings.ToLower(head)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func parseRequirement(text string) (Requirement, error) {
	var req Requirement

	text, req.Options = splitOptions(text)
	if isDirectReference(text) {
		ref, marker, found := strings.Cut(text, " ;")
		req.URL = strings.TrimSpace(ref)
		if found {
			req.Marker = strings.TrimSpace(marker)
		}
		return req, nil
	}

	if i := strings.Index(text, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(text[i+1:])
		text = strings.TrimSpace(text[:i])
		if req.Marker == "" {
			return req, fmt.Errorf("empty environment marker")
		}
	}

	name := namePattern.FindString(text)
	if name == "" {
		return req, fmt.Errorf("missing package name")
	}
	req.Name = name
	rest := strings.TrimSpace(text[len(name):])

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return req, fmt.Errorf("unterminated extras")
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				continue
			}
			if !namePattern.MatchString(extra) {
				return req, fmt.Errorf("invalid extra %q", extra)
			}
			req.Extras = append(req.Extras, extra)
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	if strings.HasPrefix(rest, "@") {
		req.URL = strings.TrimSpace(rest[1:])
		if req.URL == "" {
			return req, fmt.Errorf("empty URL")
		}
		return req, nil
	}

	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if rest == "" {
		return req, nil
	}

	for _, clause := range strings.Split(rest, ",") {
		clause = strings.TrimSpace(clause)
		m := specifierPattern.FindStringSubmatch(clause)
		if m == nil {
			return req, fmt.Errorf("invalid version specifier %q", clause)
		}
		req.Specifiers = append(req.Specifiers, Specifier{Op: m[1], Version: m[2]})
	}

	return req, nil
}
