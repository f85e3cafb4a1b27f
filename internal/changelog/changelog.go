// Package changelog extracts the release notes of one version from a
// Markdown changelog (Keep a Changelog and similar layouts).
package changelog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrSectionNotFound reports that no heading mentions the version.
var ErrSectionNotFound = errors.New("changelog section not found")

// ReadSection loads path and returns the notes for version.
func ReadSection(path, version string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read changelog: %w", err)
	}
	return Section(data, version)
}

// Section returns the Markdown below the first heading whose text mentions
// version (with or without a leading "v"), up to the next heading of the same
// or a higher level. The result is trimmed; an empty section is valid.
func Section(source []byte, version string) (string, error) {
	match := versionPattern(version)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var (
		found *gmast.Heading
		start = -1
		end   = len(source)
	)
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, isHeading := n.(*gmast.Heading)
		if found == nil {
			if isHeading && match.MatchString(headingText(h, source)) {
				found = h
			}
			continue
		}
		if isHeading && h.Level <= found.Level {
			if pos, ok := blockStart(h, source); ok {
				end = pos
			}
			break
		}
		if start < 0 {
			if pos, ok := blockStart(n, source); ok {
				start = pos
			}
		}
	}
	if found == nil {
		return "", fmt.Errorf("%w: %s", ErrSectionNotFound, version)
	}
	if start < 0 || start > end {
		return "", nil
	}
	return trimReferences(string(source[start:end])), nil
}

var refDefinition = regexp.MustCompile(`^\s{0,3}\[[^\]]+\]:\s*\S`)

// trimReferences drops trailing link reference definitions, which Keep a
// Changelog files collect after the last section.
func trimReferences(body string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for len(lines) > 0 {
		last := lines[len(lines)-1]
		if strings.TrimSpace(last) != "" && !refDefinition.MatchString(last) {
			break
		}
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func versionPattern(version string) *regexp.Regexp {
	v := regexp.QuoteMeta(strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V"))
	return regexp.MustCompile(`(^|[^0-9A-Za-z.])[vV]?` + v + `([^0-9A-Za-z.+-]|$)`)
}

func headingText(h gmast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = gmast.Walk(h, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *gmast.Text:
			buf.Write(t.Segment.Value(source))
		case *gmast.String:
			buf.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return buf.String()
}

// blockStart returns the offset of the beginning of the first source line of n.
func blockStart(n gmast.Node, source []byte) (int, bool) {
	if n.Type() == gmast.TypeBlock && n.Lines().Len() > 0 {
		pos := lineStart(source, n.Lines().At(0).Start)
		if _, fenced := n.(*gmast.FencedCodeBlock); fenced && pos > 0 {
			// Lines hold the code only; include the opening fence.
			pos = lineStart(source, pos-1)
		}
		return pos, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if pos, ok := blockStart(c, source); ok {
			return pos, true
		}
	}
	return 0, false
}

func lineStart(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}
