package hooks

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is one configured hook entry, loaded from the `[[hooks]]` array in
// the TOML hook configuration file (§6 External Interfaces).
type Config struct {
	Event     string `toml:"event"`
	Command   string `toml:"command"`
	MatchTool string `toml:"match_tool"`
	Phase     string `toml:"phase"`
	TimeoutMS uint64 `toml:"timeout_ms"`
}

type hooksFile struct {
	Hooks []Config `toml:"hooks"`
}

// loadConfig reads and parses the TOML hook configuration at path. A
// missing file yields an empty hook set; a parse error is reported on stderr
// and also yields an empty hook set — a malformed config must never prevent
// the controller from running.
func loadConfig(path string) []Config {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var file hooksFile
	if err := toml.Unmarshal(content, &file); err != nil {
		fmt.Fprintf(os.Stderr, "[hooks] failed to parse %s: %v\n", path, err)
		return nil
	}
	return file.Hooks
}

func matchesTool(h Config, tool string) bool {
	if h.MatchTool == "" {
		return true
	}
	return h.MatchTool == tool
}

const (
	eventPreToolUse  = "PreToolUse"
	eventPostToolUse = "PostToolUse"
	eventStop        = "Stop"

	phaseGuard   = "guard"
	phaseObserve = "observe"
)

func (h Config) guardOrObserve() string {
	if h.Phase == phaseObserve {
		return phaseObserve
	}
	return phaseGuard
}
