package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/wkarimi/kodisha/adapters/hasher"
)

var tokenCost int

var tokenCmd = &cobra.Command{
	Use:   "token <plaintext>",
	Short: "Hash an admin API token",
	Long: `Hash an admin bearer token with bcrypt.

Put the output in admin.token_hash (or KODISHA_ADMIN_TOKEN_HASH) and
hand the plaintext to the operator. The server never stores plaintext.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := hasher.NewBcrypt(tokenCost).Hash(args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(h))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().IntVar(&tokenCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}
