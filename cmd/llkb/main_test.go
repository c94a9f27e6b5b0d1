package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/llkb/internal/classify"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
)

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// resetFlags restores every changed flag to its default so that flag values
// set by one execute call do not leak into the next; the commands share
// package-level flag variables bound to the global rootCmd.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestInitHealthRecordStats(t *testing.T) {
	root := filepath.Join(t.TempDir(), "kb")

	out, err := execute(t, "init", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized knowledge base at "+root)

	store := knowledge.Open(root, nil)
	lessons, err := store.LoadLessons()
	require.NoError(t, err)
	assert.Equal(t, knowledge.CurrentVersion, lessons.Version)

	// A freshly initialized base is healthy.
	out, err = execute(t, "health", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Status: healthy")

	out, err = execute(t, "record", "lesson", "--root", root,
		"--title", "Toast needs explicit wait",
		"--pattern", "waitForSelector('.toast') before asserting",
		"--trigger", "flaky toast assertions",
		"--category", "timing")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recorded lesson")

	out, err = execute(t, "stats", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Lessons: 1 total, 1 active, 0 archived")
	assert.Contains(t, out, "timing: 1")
}

func TestStatsShowsRecentActivity(t *testing.T) {
	root := filepath.Join(t.TempDir(), "kb")
	_, err := execute(t, "init", "--root", root)
	require.NoError(t, err)

	out, err := execute(t, "record", "lesson", "--root", root,
		"--title", "Toast needs explicit wait",
		"--pattern", "waitForSelector('.toast') before asserting",
		"--category", "timing")
	require.NoError(t, err, out)

	store := knowledge.Open(root, nil)
	lessons, err := store.LoadLessons()
	require.NoError(t, err)
	require.Len(t, lessons.Lessons, 1)

	out, err = execute(t, "record", "applied", lessons.Lessons[0].ID,
		"--root", root, "--journey", "checkout")
	require.NoError(t, err, out)

	out, err = execute(t, "stats", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recent activity (last 7 days)")
	assert.Contains(t, out, "lesson_applied: 1")
}

func TestRecordLessonInfersCategory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "kb")
	_, err := execute(t, "init", "--root", root)
	require.NoError(t, err)

	out, err := execute(t, "record", "lesson", "--root", root,
		"--title", "Stable login",
		"--pattern", "fill the password field, then submit the login form")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(auth)")
}

func TestScanProducesReport(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "kb")
	_, err := execute(t, "init", "--root", root)
	require.NoError(t, err)

	spec := []byte(`import { test } from '@playwright/test';

test('flow', async ({ page }) => {
  await test.step('submit', async () => {
    await page.click('#submit');
    await page.waitForSelector('.toast');
  });
});
`)
	tests := filepath.Join(dir, "e2e")
	require.NoError(t, writeFile(filepath.Join(tests, "checkout.spec.ts"), spec))
	require.NoError(t, writeFile(filepath.Join(tests, "signup.spec.ts"), spec))

	out, err := execute(t, "scan", tests, "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Scanned 2 files")
	assert.Contains(t, out, "found 1 duplicate patterns")
}

func TestScanReportsComponentReuse(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "kb")
	_, err := execute(t, "init", "--root", root)
	require.NoError(t, err)

	store := knowledge.Open(root, nil)
	_, err = store.AddComponent(knowledge.Component{
		Name:     "submitAndWait",
		Category: classify.CategoryUIInteraction,
		Source: knowledge.ComponentSource{
			OriginalCode: "await page.click('#submit');\nawait page.waitForSelector('.toast');",
		},
	})
	require.NoError(t, err)

	spec := []byte(`import { test } from '@playwright/test';

test('flow', async ({ page }) => {
  await test.step('submit', async () => {
    await page.click('#submit');
    await page.waitForSelector('.toast');
  });
});
`)
	tests := filepath.Join(dir, "e2e")
	require.NoError(t, writeFile(filepath.Join(tests, "checkout.spec.ts"), spec))

	out, err := execute(t, "scan", tests, "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Reuse existing components")
	assert.Contains(t, out, "submitAndWait")
}
