package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/basher83/forgeflare/internal/jsonschema"
)

const readMaxFileSize = 1_048_576 // 1MB

// ReadInput is the Read tool's argument shape.
type ReadInput struct {
	FilePath string `json:"file_path"`
}

func readExec(rawInput json.RawMessage) (string, bool) {
	var in ReadInput
	if err := json.Unmarshal(rawInput, &in); err != nil || in.FilePath == "" {
		return "missing required parameter: file_path", true
	}

	info, err := os.Stat(in.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("file not found: %s", in.FilePath), true
		}
		return fmt.Sprintf("cannot read file metadata: %v", err), true
	}
	if info.Size() > readMaxFileSize {
		return fmt.Sprintf("file too large: %d bytes (limit: 1MB)", info.Size()), true
	}

	content, err := os.ReadFile(in.FilePath)
	if err != nil {
		return fmt.Sprintf("cannot read file: %v", err), true
	}

	checkLen := len(content)
	if checkLen > 8192 {
		checkLen = 8192
	}
	if bytes.IndexByte(content[:checkLen], 0) >= 0 {
		return fmt.Sprintf("[Binary file: %s, %d bytes]", in.FilePath, len(content)), false
	}

	if !utf8.Valid(content) {
		return fmt.Sprintf("file contains invalid UTF-8: %s", in.FilePath), true
	}
	return string(content), false
}

var readSchema = jsonschema.GenerateJSONSchema[ReadInput]()

const readDescription = "Read a file from disk. Returns file contents as text. Binary files return a placeholder message. Maximum 1MB file size."
