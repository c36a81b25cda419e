package tool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/basher83/forgeflare/internal/jsonschema"
)

const editMaxFileSize = 102_400 // 100KB

// EditInput is the Edit tool's argument shape.
type EditInput struct {
	FilePath   string `json:"file_path"`
	OldStr     string `json:"old_str"`
	NewStr     string `json:"new_str"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

func editExec(rawInput json.RawMessage) (string, bool) {
	var in EditInput
	if err := json.Unmarshal(rawInput, &in); err != nil || in.FilePath == "" {
		return "missing required parameter: file_path", true
	}

	if in.OldStr == "" {
		return editCreateOrAppend(in)
	}

	info, err := os.Stat(in.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("file not found: %s", in.FilePath), true
		}
		return fmt.Sprintf("cannot read file metadata: %v", err), true
	}
	if info.Size() > editMaxFileSize {
		return fmt.Sprintf("File too large for edit: %d bytes (limit: 100KB)", info.Size()), true
	}

	raw, err := os.ReadFile(in.FilePath)
	if err != nil {
		return fmt.Sprintf("cannot read file: %v", err), true
	}
	content := string(raw)

	if in.ReplaceAll {
		if !strings.Contains(content, in.OldStr) {
			return fmt.Sprintf("Text not found in %s", in.FilePath), true
		}
		count := strings.Count(content, in.OldStr)
		updated := strings.ReplaceAll(content, in.OldStr, in.NewStr)
		if err := os.WriteFile(in.FilePath, []byte(updated), info.Mode().Perm()); err != nil {
			return fmt.Sprintf("cannot write file: %v", err), true
		}
		return fmt.Sprintf("Replaced %d occurrences in %s", count, in.FilePath), false
	}

	count := strings.Count(content, in.OldStr)
	if count == 0 {
		return fmt.Sprintf("Text not found in %s", in.FilePath), true
	}
	if count > 1 {
		return fmt.Sprintf("Found %d matches in %s (expected exactly 1). Use replace_all=true for bulk replacement.", count, in.FilePath), true
	}

	updated := strings.Replace(content, in.OldStr, in.NewStr, 1)
	if err := os.WriteFile(in.FilePath, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Sprintf("cannot write file: %v", err), true
	}
	return fmt.Sprintf("Edited %s", in.FilePath), false
}

// editCreateOrAppend handles the empty-old_str case: append to an existing
// file, or create it (and its parent directories) if it doesn't exist.
func editCreateOrAppend(in EditInput) (string, bool) {
	existing, err := os.ReadFile(in.FilePath)
	if err == nil {
		updated := string(existing) + in.NewStr
		if writeErr := os.WriteFile(in.FilePath, []byte(updated), 0o644); writeErr != nil {
			return fmt.Sprintf("cannot write file: %v", writeErr), true
		}
		return fmt.Sprintf("Appended to %s", in.FilePath), false
	}
	if !os.IsNotExist(err) {
		return fmt.Sprintf("cannot read file: %v", err), true
	}

	if dir := filepath.Dir(in.FilePath); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Sprintf("cannot create parent directories: %v", mkErr), true
		}
	}
	if writeErr := os.WriteFile(in.FilePath, []byte(in.NewStr), 0o644); writeErr != nil {
		return fmt.Sprintf("cannot write file: %v", writeErr), true
	}
	return fmt.Sprintf("Created %s", in.FilePath), false
}

var editSchema = jsonschema.GenerateJSONSchema[EditInput]()

const editDescription = "Edit a file by replacing old_str with new_str. Requires exactly one match unless replace_all is set. Empty old_str creates the file (or appends if it already exists). 100KB file size limit."
