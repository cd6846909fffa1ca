// Package applier turns a consensus fix text into file edits. Fixes carry
// one fenced code block per modified file, with the file path on the fence
// line; everything else in the fix text is prose and is ignored.
package applier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileBlock is one file's worth of replacement content extracted from a fix.
type FileBlock struct {
	Path    string
	Content string
}

// fenceRe matches an opening fence with a path on the info line, e.g.
// "```go internal/parser/scan.go" or "```internal/parser/scan.go".
var fenceRe = regexp.MustCompile("(?m)^```([a-zA-Z0-9+-]*)[ \t]+([^\\s`]+)[ \t]*$|^```([^\\s`]*/[^\\s`]+)[ \t]*$")

// FileApplier writes fix blocks into the working tree.
type FileApplier struct {
	Root string // project root, empty = current directory
}

// Apply extracts file blocks from the fix text and writes them under the
// root. It returns false without error when the fix carries no applicable
// file blocks; the repair loop treats that as a skipped iteration, not a
// crash.
func (a *FileApplier) Apply(ctx context.Context, fixText string, target map[string]string) (bool, error) {
	blocks := ExtractBlocks(fixText)
	if len(blocks) == 0 {
		return false, nil
	}

	root := a.Root
	if root == "" {
		root = "."
	}

	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		path := filepath.Join(root, filepath.FromSlash(b.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return false, fmt.Errorf("failed to create directory for %s: %w", b.Path, err)
		}
		if err := os.WriteFile(path, []byte(b.Content), 0o644); err != nil {
			return false, fmt.Errorf("failed to write %s: %w", b.Path, err)
		}
	}
	return true, nil
}

// ExtractBlocks pulls the path-tagged fenced blocks out of a fix text.
// Blocks with unsafe paths (absolute, or escaping the root) are dropped.
func ExtractBlocks(fixText string) []FileBlock {
	var blocks []FileBlock
	lines := strings.Split(fixText, "\n")

	for i := 0; i < len(lines); i++ {
		m := fenceRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		path := m[2]
		if path == "" {
			path = m[3]
		}
		if !safePath(path) {
			// Skip to the closing fence and drop the block.
			i = closingFence(lines, i)
			continue
		}

		end := closingFence(lines, i)
		if end == i {
			break // unterminated fence
		}
		blocks = append(blocks, FileBlock{
			Path:    path,
			Content: strings.Join(lines[i+1:end], "\n") + "\n",
		})
		i = end
	}
	return blocks
}

// closingFence returns the index of the ``` line terminating the block
// opened at start, or start itself when none exists.
func closingFence(lines []string, start int) int {
	for j := start + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "```" {
			return j
		}
	}
	return start
}

func safePath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return false
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator)) && !filepath.IsAbs(clean)
}
