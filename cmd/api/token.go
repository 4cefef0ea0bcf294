package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aula/api/internal/auth"
	"aula/api/internal/rbac"
)

var (
	tokenSubject string
	tokenRole    string
	tokenOrg     string
	tokenTTL     time.Duration
)

// tokenCmd issues bearer tokens for local development and smoke tests.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed bearer token for a caller",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(cfg.TokenSecret) == "" {
			return errors.New("AULA_TOKEN_SECRET is not set")
		}
		role, err := rbac.Parse(tokenRole)
		if err != nil {
			return err
		}
		if strings.TrimSpace(tokenSubject) == "" {
			return errors.New("--sub is required")
		}
		token, err := auth.IssueToken([]byte(cfg.TokenSecret), tokenSubject, auth.Claims{
			Role:           string(role),
			OrganizationID: strings.TrimSpace(tokenOrg),
		}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "User id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(rbac.RoleDocente), "Role (admin, revisor, docente, estudiante)")
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "Organization id")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
