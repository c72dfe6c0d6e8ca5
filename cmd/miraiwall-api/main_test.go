package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/auth"
	"github.com/spf13/viper"
)

func TestRootCommandRegistersSubcommands(testContext *testing.T) {
	rootCmd := newRootCommand()
	for _, path := range [][]string{{"keys", "import"}, {"keys", "generate"}, {"admin-token"}} {
		found, _, err := rootCmd.Find(path)
		if err != nil || found == rootCmd {
			testContext.Fatalf("expected subcommand %v to be registered: %v", path, err)
		}
	}
	if rootCmd.PersistentFlags().Lookup("database-driver") == nil {
		testContext.Fatalf("expected database-driver flag")
	}
}

func TestAdminTokenCommandMintsValidToken(testContext *testing.T) {
	viper.Set("admin.signing_secret", "cli-secret")
	viper.Set("admin.issuer", "miraiwall-cli")
	testContext.Cleanup(func() {
		viper.Set("admin.signing_secret", "")
		viper.Set("admin.issuer", "miraiwall")
	})

	rootCmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"admin-token", "--subject", "operator", "--ttl", "1h"})
	if err := rootCmd.Execute(); err != nil {
		testContext.Fatalf("admin-token failed: %v", err)
	}

	validator, err := auth.NewAdminValidator(auth.AdminValidatorConfig{
		SigningSecret: []byte("cli-secret"),
		Issuer:        "miraiwall-cli",
		Clock:         func() time.Time { return time.Now().Add(30 * time.Minute) },
	})
	if err != nil {
		testContext.Fatalf("failed to construct validator: %v", err)
	}
	claims, err := validator.ValidateToken(strings.TrimSpace(stdout.String()))
	if err != nil {
		testContext.Fatalf("minted token rejected: %v", err)
	}
	if claims.Subject != "operator" {
		testContext.Fatalf("unexpected subject %q", claims.Subject)
	}
}
