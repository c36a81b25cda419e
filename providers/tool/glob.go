package tool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/basher83/forgeflare/internal/jsonschema"
)

const globMaxEntries = 1000

// GlobInput is the Glob tool's argument shape.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// globExec matches files against pattern rooted at path using native Go
// double-star globbing (doublestar.Glob) instead of the teacher's
// shell-out-to-bash expansion — a deliberate deviation so Glob has no
// subprocess dependency at all. Results are capped at 1000 entries and
// sorted by modification time, newest first, matching this module's own
// requirement rather than the unsorted bash listing original_source produces.
func globExec(rawInput json.RawMessage) (string, bool) {
	var in GlobInput
	if err := json.Unmarshal(rawInput, &in); err != nil || in.Pattern == "" {
		return "missing required parameter: pattern", true
	}

	base := in.Path
	if base == "" {
		base = "."
	}

	fullPattern := in.Pattern
	if !strings.HasPrefix(fullPattern, "/") && !strings.HasPrefix(fullPattern, ".") {
		fullPattern = filepath.Join(base, in.Pattern)
	}

	matches, err := doublestar.FilepathGlob(fullPattern)
	if err != nil {
		return fmt.Sprintf("failed to execute glob: %v", err), true
	}
	if len(matches) == 0 {
		return "No files found", false
	}

	type entry struct {
		path    string
		modTime int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime().UnixNano()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime > entries[j].modTime })

	if len(entries) > globMaxEntries {
		entries = entries[:globMaxEntries]
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.path
	}
	return strings.Join(lines, "\n"), false
}

var globSchema = jsonschema.GenerateJSONSchema[GlobInput]()

const globDescription = "List files matching a glob pattern. Returns up to 1000 entries sorted by modification time, newest first."
