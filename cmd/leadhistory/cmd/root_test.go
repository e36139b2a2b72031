package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/testutil"
)

// TestExecuteContext_CancelsInFlightRequest verifies that cancelling the
// context passed to ExecuteContext aborts a request the command is
// waiting on.
func TestExecuteContext_CancelsInFlightRequest(t *testing.T) {
	srv := newServer(t)
	release := srv.Hold("messages")
	t.Cleanup(release)
	home := newHome(t, srv.URL)

	resetFlags()
	t.Cleanup(resetFlags)
	t.Setenv("LEADHISTORY_LANG", "en")
	rootCmd.SetArgs([]string{"--home", home, "messages", "42"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Ensure cleanup even if test fails early

	done := make(chan error, 1)
	go func() {
		done <- ExecuteContext(ctx)
	}()

	// Wait until the request reaches the server
	deadline := time.Now().Add(2 * time.Second)
	for len(srv.RequestsTo("messages")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("messages request did not reach the server in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Cancel the context (simulates SIGINT/SIGTERM)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled error, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ExecuteContext did not return after context cancellation")
	}
}

// TestExecuteContext_PropagatesContext verifies ExecuteContext passes context to command handlers.
//
// NOTE: This test modifies the package-level rootCmd variable and must NOT use t.Parallel().
func TestExecuteContext_PropagatesContext(t *testing.T) {
	savedRootCmd := rootCmd
	defer func() { rootCmd = savedRootCmd }()

	testRoot := &cobra.Command{Use: "leadhistory"}

	type ctxKey string
	var receivedCtx context.Context
	testRoot.AddCommand(&cobra.Command{
		Use: "test-ctx",
		RunE: func(cmd *cobra.Command, args []string) error {
			receivedCtx = cmd.Context()
			return nil
		},
	})
	rootCmd = testRoot

	testKey := ctxKey("test-key")
	ctx := context.WithValue(context.Background(), testKey, "test-value")

	testRoot.SetArgs([]string{"test-ctx"})
	if err := ExecuteContext(ctx); err != nil {
		t.Fatalf("ExecuteContext returned unexpected error: %v", err)
	}
	if receivedCtx == nil {
		t.Fatal("command did not receive context")
	}
	if got := receivedCtx.Value(testKey); got != "test-value" {
		t.Errorf("context value mismatch: got %v, want %v", got, "test-value")
	}
}

// TestExecuteContext_FreshContextAfterCancel verifies a cancelled run does
// not leave its context behind for the next invocation.
func TestExecuteContext_FreshContextAfterCancel(t *testing.T) {
	srv := newServer(t)
	home := newHome(t, srv.URL)

	resetFlags()
	t.Setenv("LEADHISTORY_LANG", "en")
	rootCmd.SetArgs([]string{"--home", home, "messages", "42"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ExecuteContext(ctx); err == nil {
		t.Fatal("expected an error from a cancelled run")
	}

	out, err := run(t, home, "messages", "42")
	testutil.MustNoErr(t, err, "messages after cancelled run")
	testutil.AssertContainsAll(t, out, "Hello")
}

func TestPersistentPreRun_InvalidConfig(t *testing.T) {
	home := t.TempDir()
	testutil.WriteFile(t, home, "config.toml", "[scroll]\nstore = \"redis\"\n")

	_, err := run(t, home, "preset", "list")
	if err == nil {
		t.Fatal("expected config error")
	}
}
