package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errAdminDisabled = errors.New("admin.signing_secret is not configured")

func newAdminTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a bearer token for the admin routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if !appConfig.AdminEnabled() {
				return errAdminDisabled
			}
			if ttl <= 0 {
				ttl = appConfig.AdminTokenTTL
			}

			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AdminSigningSecret),
				Issuer:        appConfig.AdminIssuer,
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.IssueAdminToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Operator identity recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to admin.token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
