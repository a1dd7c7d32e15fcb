//go:build windows

package tools

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExecutor_WindowsKeepsInnerQuotes(t *testing.T) {
	e := NewLocalExecutor(NewDetachedSearchPath(os.Getenv("PATH"), "windows"))

	res, err := e.Execute(context.Background(), ExecuteOptions{Command: `echo "two words"`})
	require.NoError(t, err)
	require.True(t, res.Succeeded(), string(res.Stderr))
	assert.Equal(t, `"two words"`, strings.TrimSpace(string(res.Stdout)))
}

func TestLocalExecutor_WindowsPowerShellCommandRuns(t *testing.T) {
	e := NewLocalExecutor(NewDetachedSearchPath(os.Getenv("PATH"), "windows"))

	res, err := e.Execute(context.Background(), ExecuteOptions{Command: `powershell -NoProfile -Command "Write-Output (6 * 7)"`})
	require.NoError(t, err)
	require.True(t, res.Succeeded(), string(res.Stderr))
	assert.Equal(t, "42", strings.TrimSpace(string(res.Stdout)))
}
