package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-mizu/liveproxy/wsrelay"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	var secret string

	c := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a JWT the relay will accept on /live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if secret != "" {
				cfg.JWTSecret = secret
			}
			tok, err := wsrelay.IssueToken([]byte(cfg.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	c.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	c.Flags().StringVar(&secret, "secret", "", "JWT signing secret (overrides config)")
	return c
}
