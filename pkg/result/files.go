// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// File name suffixes of the Allure results layout.
const (
	ResultSuffix     = "-result.json"
	ContainerSuffix  = "-container.json"
	AttachmentInfix  = "-attachment"
	ResultGlob       = "**/*" + ResultSuffix
	ContainerGlob    = "**/*" + ContainerSuffix
	tempFilePattern  = ".tally-*.tmp"
	defaultFileMode  = 0o644
	defaultDirectory = 0o755
)

// IsResultFile reports whether path names a result record.
func IsResultFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), ResultSuffix)
}

// IsContainerFile reports whether path names a container record.
func IsContainerFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), ContainerSuffix)
}

// IsAttachmentFile reports whether path names an attachment, that is a file
// named <uuid>-attachment with an optional extension.
func IsAttachmentFile(path string) bool {
	id, rest, ok := strings.Cut(filepath.Base(path), AttachmentInfix)
	if !ok || len(id) != 36 {
		return false
	}
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	if rest == "" {
		return true
	}
	ext, ok := strings.CutPrefix(rest, ".")
	if !ok || ext == "" {
		return false
	}
	for _, r := range ext {
		if r != '.' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

// AttachmentSource builds the file name for an attachment with the given
// uuid and MIME type.
func AttachmentSource(uuid, mimeType string) string {
	return uuid + AttachmentInfix + extensionFor(mimeType)
}

// WriteResult writes r to dir as <uuid>-result.json.
func WriteResult(dir string, r *Result) error {
	if r == nil || r.UUID == "" {
		return fmt.Errorf("result uuid is required")
	}
	return writeJSON(dir, r.UUID+ResultSuffix, r)
}

// WriteContainer writes c to dir as <uuid>-container.json.
func WriteContainer(dir string, c *Container) error {
	if c == nil || c.UUID == "" {
		return fmt.Errorf("container uuid is required")
	}
	return writeJSON(dir, c.UUID+ContainerSuffix, c)
}

// WriteAttachment writes raw attachment bytes to dir under source.
func WriteAttachment(dir, source string, data []byte) error {
	if source == "" || strings.ContainsAny(source, `/\`) {
		return fmt.Errorf("invalid attachment source %q", source)
	}
	return writeAtomic(dir, source, data)
}

// ReadResult decodes a result file.
func ReadResult(path string) (*Result, error) {
	var r Result
	if err := readJSON(path, &r); err != nil {
		return nil, err
	}
	if r.Status == "" {
		r.Status = StatusUnknown
	}
	return &r, nil
}

// ReadContainer decodes a container file.
func ReadContainer(path string) (*Container, error) {
	var c Container
	if err := readJSON(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func writeJSON(dir, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return writeAtomic(dir, name, data)
}

// writeAtomic writes through a temp file and renames it into place, so a
// watcher never observes a half-written record.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, defaultDirectory); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, defaultFileMode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", name, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

var extensions = map[string]string{
	"text/plain":       ".txt",
	"application/json": ".json",
	"application/xml":  ".xml",
	"text/xml":         ".xml",
	"text/html":        ".html",
	"text/csv":         ".csv",
	"image/png":        ".png",
	"image/jpeg":       ".jpg",
	"image/svg+xml":    ".svg",
	"application/yaml": ".yaml",
	"text/yaml":        ".yaml",
}

func extensionFor(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}
