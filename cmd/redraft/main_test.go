package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redraft/internal/session"
	"redraft/internal/types"
)

const promoDraft = `Ưu đãi tháng 10 tại Highlands: giảm 30% cho mọi đồ uống size L. Giá chỉ từ 29.000đ, áp dụng đến 31/10.

Chị Lan, quản lý chi nhánh ở Đà Nẵng, cho biết ưu đãi áp dụng cho 3 chi nhánh. Lưu ý: không áp dụng cùng khuyến mãi khác.`

// newTestCmd returns a command writing to a buffer, with globals reset.
func newTestCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	cfg = nil
	jsonOutput = false
	t.Cleanup(func() {
		jsonOutput = false
		transformDiff = false
		transformDryRun = false
		transformAction = ""
		transformSession = ""
		contractSource = ""
		contractCheck = ""
	})

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"one", "two", "three"})
	if got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

func TestClassifyAll_KeepsOrder(t *testing.T) {
	inputs := []string{
		"shorten this post",
		"what can you do",
		"review the draft above",
		"write a caption for our new menu",
	}
	results, err := classifyAll(context.Background(), inputs, 2)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))

	want := []types.ActionType{types.ActionShorten, types.ActionMeta, types.ActionEvaluate, types.ActionCreateContent}
	for i, r := range results {
		assert.Equal(t, inputs[i], r.Input)
		assert.Equal(t, want[i], r.Class.Type, "input %q", r.Input)
	}
}

func TestClassifyAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := classifyAll(ctx, []string{"shorten this"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunClassify_Table(t *testing.T) {
	cmd, buf := newTestCmd(t)
	classifyWorkers = 4

	require.NoError(t, runClassify(cmd, []string{"shorten this post"}))
	out := buf.String()
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, "SHORTEN")
	assert.Contains(t, out, "shorten this post")
}

func TestRunClassify_JSON(t *testing.T) {
	cmd, buf := newTestCmd(t)
	jsonOutput = true

	require.NoError(t, runClassify(cmd, []string{"what can you do"}))
	var got []classified
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, types.ActionMeta, got[0].Class.Type)
}

func TestRunExtract(t *testing.T) {
	cmd, buf := newTestCmd(t)
	extractFile = writeFile(t, "draft.txt", promoDraft)

	require.NoError(t, runExtract(cmd, nil))
	out := buf.String()
	assert.Contains(t, out, "Topic:")
	assert.Contains(t, out, "30%")
	assert.Contains(t, out, "31/10")
	assert.Contains(t, out, "Format:   paragraph")
}

func TestRunExtract_Stdin(t *testing.T) {
	cmd, buf := newTestCmd(t)
	cmd.SetIn(strings.NewReader(promoDraft))
	extractFile = "-"
	jsonOutput = true

	require.NoError(t, runExtract(cmd, nil))
	var locked types.LockedContext
	require.NoError(t, json.Unmarshal(buf.Bytes(), &locked))
	assert.Equal(t, "-", locked.SourceMessageID)
	assert.NotEmpty(t, locked.CriticalEntities())
}

func TestRunExtract_EmptyFile(t *testing.T) {
	cmd, _ := newTestCmd(t)
	extractFile = writeFile(t, "empty.txt", "  \n")
	assert.ErrorContains(t, runExtract(cmd, nil), "is empty")
}

func TestRunContract(t *testing.T) {
	cmd, buf := newTestCmd(t)
	require.NoError(t, runContract(cmd, []string{"rewrite", "in", "at", "most", "12", "words"}))
	assert.Equal(t, "- Length: at most 12 words.\n", buf.String())
}

func TestRunContract_NoRequirements(t *testing.T) {
	cmd, buf := newTestCmd(t)
	require.NoError(t, runContract(cmd, []string{"rewrite this"}))
	assert.Contains(t, buf.String(), "No explicit requirements.")
}

func TestRunContract_Check(t *testing.T) {
	cmd, buf := newTestCmd(t)
	contractCheck = writeFile(t, "reply.txt", "one two three four five six seven eight nine ten eleven twelve thirteen")

	require.NoError(t, runContract(cmd, []string{"at most 12 words"}))
	out := buf.String()
	assert.Contains(t, out, "Words: 13")
	assert.Contains(t, out, "output has 13 words, at most 12 allowed")
	assert.True(t, strings.HasSuffix(out, "FAIL\n"))
}

func TestRunTransform_DryRunFallsBack(t *testing.T) {
	cmd, buf := newTestCmd(t)
	transformFile = writeFile(t, "draft.txt", promoDraft)
	transformInstruction = "làm ngắn lại giúp mình"
	transformAction = "shorten"
	transformDryRun = true

	require.NoError(t, runTransform(cmd, nil))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Ưu đãi tháng 10 tại Highlands: giảm 30% cho mọi đồ uống size L."))
	assert.Contains(t, out, "action=SHORTEN state=FALLBACK attempts=4 retry=true fallback=true")
}

func TestRunTransform_DryRunJSON(t *testing.T) {
	cmd, buf := newTestCmd(t)
	transformFile = writeFile(t, "draft.txt", promoDraft)
	transformInstruction = "shorten this post"
	transformAction = ""
	transformDryRun = true
	jsonOutput = true

	require.NoError(t, runTransform(cmd, nil))
	var got session.Outcome
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, types.ActionShorten, got.Classification.Type)
	assert.NotEmpty(t, got.OutputID)
	require.NotNil(t, got.Transform)
	assert.True(t, got.Transform.FallbackUsed)
}

func TestRunTransform_Diff(t *testing.T) {
	cmd, buf := newTestCmd(t)
	transformFile = writeFile(t, "draft.txt", promoDraft)
	transformInstruction = "shorten"
	transformAction = "shorten"
	transformDryRun = true
	transformDiff = true

	require.NoError(t, runTransform(cmd, nil))
	out := buf.String()
	assert.Contains(t, out, "- Chị Lan")
	assert.Contains(t, out, "removed")
}

func TestRunTransform_NoFallbackForTranslate(t *testing.T) {
	cmd, _ := newTestCmd(t)
	transformFile = writeFile(t, "draft.txt", promoDraft)
	transformInstruction = "translate to English"
	transformAction = "translate"
	transformDryRun = true

	err := runTransform(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(types.CodeNoFallback))
}

func TestRunTransform_UnknownAction(t *testing.T) {
	cmd, _ := newTestCmd(t)
	transformFile = writeFile(t, "draft.txt", promoDraft)
	transformAction = "summon"
	assert.ErrorContains(t, runTransform(cmd, nil), `unknown action "summon"`)
}

func TestRunTransform_SQLiteSession(t *testing.T) {
	cmd, _ := newTestCmd(t)
	cfg = currentConfig()
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "state.db")

	transformFile = writeFile(t, "draft.txt", promoDraft)
	transformInstruction = "shorten"
	transformAction = "shorten"
	transformSession = "cli-test"
	transformDryRun = true
	require.NoError(t, runTransform(cmd, nil))

	_, err := os.Stat(cfg.Store.Path)
	assert.NoError(t, err)
}
