package deps

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Problem is a requirement that does not look installed as requested.
type Problem struct {
	Requirement Requirement
	Installed   string
	Reason      string
}

func (p Problem) String() string {
	if p.Installed != "" {
		return fmt.Sprintf("%s: %s (installed %s)", p.Requirement.Name, p.Reason, p.Installed)
	}
	return fmt.Sprintf("%s: %s", p.Requirement.Name, p.Reason)
}

// Verify checks staged metadata against the parsed requirements. Every
// unconditional requirement needs a matching .dist-info directory, and an
// exact pin must match the installed version when both parse. Requirements
// with environment markers or URLs are skipped.
func Verify(target string, file *File) ([]Problem, error) {
	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}

	installed := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".dist-info") {
			continue
		}
		name, version, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".dist-info"), "-")
		if !ok {
			continue
		}
		installed[NormalizeName(name)] = version
	}

	var problems []Problem
	for _, req := range file.Requirements {
		if req.Marker != "" || req.URL != "" {
			continue
		}

		version, ok := installed[req.NormalizedName()]
		if !ok {
			problems = append(problems, Problem{Requirement: req, Reason: "no installed metadata"})
			continue
		}

		pin, pinned := req.Pinned()
		if !pinned || sameVersion(pin, version) {
			continue
		}
		problems = append(problems, Problem{Requirement: req, Installed: version, Reason: "pinned " + pin})
	}

	return problems, nil
}

// sameVersion compares loosely; unparseable versions are compared as text.
func sameVersion(want, got string) bool {
	w, errW := semver.NewVersion(want)
	g, errG := semver.NewVersion(got)
	if errW != nil || errG != nil {
		return want == got
	}
	return w.Equal(g)
}
