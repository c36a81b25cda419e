package tool

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadExec_MissingFilePath(t *testing.T) {
	out, isErr := readExec(json.RawMessage(`{}`))
	if !isErr {
		t.Fatal("expected an error for a missing file_path")
	}
	if out != "missing required parameter: file_path" {
		t.Errorf("unexpected message: %q", out)
	}
}

func TestReadExec_MalformedInput(t *testing.T) {
	_, isErr := readExec(json.RawMessage(`not json`))
	if !isErr {
		t.Fatal("expected an error for malformed JSON input")
	}
}

func TestReadExec_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	input, _ := json.Marshal(ReadInput{FilePath: filepath.Join(dir, "missing.txt")})

	out, isErr := readExec(input)
	if !isErr {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.HasPrefix(out, "file not found:") {
		t.Errorf("unexpected message: %q", out)
	}
}

func TestReadExec_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), readMaxFileSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	input, _ := json.Marshal(ReadInput{FilePath: path})

	out, isErr := readExec(input)
	if !isErr {
		t.Fatal("expected an error for a file over the 1MB limit")
	}
	if !strings.Contains(out, "file too large") {
		t.Errorf("unexpected message: %q", out)
	}
}

func TestReadExec_ReadsTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello, world"), 0o644); err != nil {
		t.Fatal(err)
	}
	input, _ := json.Marshal(ReadInput{FilePath: path})

	out, isErr := readExec(input)
	if isErr {
		t.Fatalf("unexpected error: %q", out)
	}
	if out != "hello, world" {
		t.Errorf("content = %q, want %q", out, "hello, world")
	}
}

func TestReadExec_BinaryFileReturnsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.dat")
	content := []byte{0x00, 0x01, 0x02, 'h', 'i'}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	input, _ := json.Marshal(ReadInput{FilePath: path})

	out, isErr := readExec(input)
	if isErr {
		t.Fatalf("a binary file placeholder must not be an error result: %q", out)
	}
	want := "[Binary file: " + path + ", 5 bytes]"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestReadExec_InvalidUTF8IsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.txt")
	// Invalid UTF-8 with no null byte, so it isn't caught by the binary check.
	content := []byte{'h', 'i', 0xff, 0xfe, 'x'}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	input, _ := json.Marshal(ReadInput{FilePath: path})

	out, isErr := readExec(input)
	if !isErr {
		t.Fatal("expected an error for invalid UTF-8 content")
	}
	if !strings.HasPrefix(out, "file contains invalid UTF-8:") {
		t.Errorf("unexpected message: %q", out)
	}
}
