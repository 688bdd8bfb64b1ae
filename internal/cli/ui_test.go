package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matzehuels/territory/pkg/store"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestPrintStats(t *testing.T) {
	buf := captureStdout(t)
	printStats(3, 4, 2, true)
	printStats(0, 0, 0, false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], "3 entities")
		assert.Contains(t, lines[0], "4x2 cells")
		assert.Contains(t, lines[0], "cached")
		assert.NotContains(t, lines[1], "entities")
		assert.Contains(t, lines[1], "fresh")
	}
}

func TestPrintKindsOrderAndOmission(t *testing.T) {
	buf := captureStdout(t)
	printKinds(map[store.Kind]int{
		store.EntityRemoved: 1,
		store.NewEntity:     5,
		store.NoOp:          0,
	})

	out := buf.String()
	assert.Less(t, strings.Index(out, string(store.NewEntity)), strings.Index(out, string(store.EntityRemoved)))
	assert.NotContains(t, out, string(store.NoOp))
}

func TestStatusLines(t *testing.T) {
	buf := captureStdout(t)
	printSuccess("wrote %s", "zones.snapshot.json")
	printWarning("%d entities dropped", 2)
	printNextStep("Browse it", "territory view zones.snapshot.json")

	out := buf.String()
	assert.Contains(t, out, "wrote zones.snapshot.json")
	assert.Contains(t, out, "2 entities dropped")
	assert.Contains(t, out, "territory view zones.snapshot.json")
}

func TestCompletionCommand(t *testing.T) {
	root := New(&bytes.Buffer{}, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "zsh"})

	assert.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "territory")

	root.SetArgs([]string{"completion", "tcsh"})
	assert.Error(t, root.Execute())
}
