package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheetspec.yaml")
	require.NoError(t, sampleConfig().SaveConfig(path))

	saved := configFlag
	configFlag = path
	t.Cleanup(func() { configFlag = saved })

	names, directive := completeEnvironment(runCmd, nil, "")
	assert.Equal(t, []string{"dev", "uat"}, names)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestCompleteWorkbook(t *testing.T) {
	exts, directive := completeWorkbook(runCmd, nil, "")
	assert.Equal(t, []string{"xlsx"}, exts)
	assert.Equal(t, cobra.ShellCompDirectiveFilterFileExt, directive)

	exts, directive = completeWorkbook(runCmd, []string{"tests.xlsx"}, "")
	assert.Empty(t, exts)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		shortVersionFlag = false
	})

	versionCmd.Run(versionCmd, nil)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "sheetspec "+version+"\n"), out)
	assert.Contains(t, out, "reports:  console, json, tap")

	buf.Reset()
	shortVersionFlag = true
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, version+"\n", buf.String())
}
