// Package dupdetect scans a test-file corpus for repeated step code blocks
// and groups them by similarity to surface extraction candidates.
//
// Step extraction is a heuristic bracket-depth scan, not a real parser: it
// finds named step calls and captures the balanced brace block that follows.
// Brace characters inside string literals can throw the depth count off, so
// extraction can misfire on such inputs; the contract is correct behavior on
// well-formed step bodies.
package dupdetect

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TestStep is one extracted step block. Transient: produced by a scan and
// discarded after the run.
type TestStep struct {
	File      string
	JourneyID string
	StepName  string
	Code      string
	StartLine int
	EndLine   int
}

// test file naming markers and allowed extensions.
var (
	testMarkers    = []string{".spec.", ".test.", ".e2e."}
	testExtensions = map[string]bool{
		".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true,
	}

	// Matches the header of a named step call up to its opening brace; the
	// body is then captured by bracket-depth scanning.
	stepHeader = regexp.MustCompile(`(?:await\s+)?test\.step\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]\s*,\s*(?:async\s*)?\(\s*\)\s*=>\s*\{`)

	lineComment  = regexp.MustCompile(`(?m)//.*$`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// DefaultExcludeDirs are directory names skipped during scanning.
var DefaultExcludeDirs = []string{"node_modules", ".git", "dist", "build", "coverage"}

// IsTestFile reports whether name follows test-file naming conventions.
func IsTestFile(name string) bool {
	if !testExtensions[filepath.Ext(name)] {
		return false
	}
	for _, marker := range testMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// JourneyIDFromFile derives a journey (scenario) identifier from a test file
// name: the base name with its test marker and extension stripped.
func JourneyIDFromFile(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	for _, marker := range testMarkers {
		trimmed := strings.TrimSuffix(marker, ".")
		name = strings.TrimSuffix(name, trimmed)
	}
	return name
}

// ExtractSteps pulls all named step blocks out of source text.
func ExtractSteps(file, source string) []TestStep {
	journey := JourneyIDFromFile(file)

	var steps []TestStep
	for _, loc := range stepHeader.FindAllStringSubmatchIndex(source, -1) {
		name := source[loc[2]:loc[3]]
		bodyStart := loc[1] // just past the opening brace
		body, ok := scanBalanced(source, bodyStart)
		if !ok {
			continue
		}

		startLine := 1 + strings.Count(source[:loc[0]], "\n")
		endLine := startLine + strings.Count(source[loc[0]:bodyStart+len(body)], "\n")

		steps = append(steps, TestStep{
			File:      file,
			JourneyID: journey,
			StepName:  name,
			Code:      strings.TrimSpace(body),
			StartLine: startLine,
			EndLine:   endLine,
		})
	}
	return steps
}

// scanBalanced returns the text from start up to (excluding) the brace that
// closes the block opened just before start. Plain depth counting; brace
// characters inside string literals are not special-cased.
func scanBalanced(source string, start int) (string, bool) {
	depth := 1
	for i := start; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return source[start:i], true
			}
		}
	}
	return "", false
}

// StripComments removes line and block comments from code.
func StripComments(code string) string {
	code = blockComment.ReplaceAllString(code, "")
	return lineComment.ReplaceAllString(code, "")
}

// CountCodeLines counts non-empty lines remaining after comment stripping.
func CountCodeLines(code string) int {
	count := 0
	for _, line := range strings.Split(StripComments(code), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// ScanDir walks root recursively, extracting steps from every test file.
// Returns the steps and the number of test files scanned.
func ScanDir(root string, excludeDirs []string) ([]TestStep, int, error) {
	if excludeDirs == nil {
		excludeDirs = DefaultExcludeDirs
	}
	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = true
	}

	var steps []TestStep
	files := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsTestFile(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files++
		steps = append(steps, ExtractSteps(path, string(data))...)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return steps, files, nil
}
