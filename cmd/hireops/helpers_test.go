package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hireops/internal/devserver"
)

// getBinaryPath returns the path to the hireops binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "hireops"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/hireops ./cmd/hireops'", binaryPath)
	}

	return binaryPath
}

// cliEnv runs commands in-process against a seeded dev server.
type cliEnv struct {
	server     *devserver.Server
	configFile string
	tokenPath  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	srv, err := devserver.New(devserver.NewMemoryRepository(), devserver.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, srv.Seed(context.Background(), devserver.DefaultSeed()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	configFile := filepath.Join(dir, "hireops.yaml")
	content := fmt.Sprintf("api:\n  base_url: %s/api\nauth:\n  token_path: %s\nlog:\n  level: ERROR\n", ts.URL, tokenPath)
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	return &cliEnv{server: srv, configFile: configFile, tokenPath: tokenPath}
}

func (e *cliEnv) run(args ...string) (string, error) {
	return e.runWithInput("", args...)
}

func (e *cliEnv) runWithInput(stdin string, args ...string) (string, error) {
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--config", e.configFile, "--plain"))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	_, err := e.run("login", "-u", "recruiter", "-p", "recruiter123")
	require.NoError(t, err)
}

// resetFlags restores every flag in the tree to its default, since flag
// values live in package variables between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
