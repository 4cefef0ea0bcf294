package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "reindex", "token"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("AULA_TOKEN_SECRET", "")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--sub", "t1"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "AULA_TOKEN_SECRET") {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestTokenCommandIssuesToken(t *testing.T) {
	t.Setenv("AULA_TOKEN_SECRET", "dev-secret")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--sub", "t1", "--role", "revisor", "--org", "org-1"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(out.String()), "."); len(parts) != 3 {
		t.Fatalf("token = %q, want a JWT", out.String())
	}
}
