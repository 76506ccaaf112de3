package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/trailsocial/engagement/internal/permalink"
)

func loadObfuscator() (*permalink.Obfuscator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return permalink.New(cfg.PermalinkSalt)
}

var encodeCmd = &cobra.Command{
	Use:   "encode <id>...",
	Short: "Encode numeric ids as permalink tokens",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obfuscator, err := loadObfuscator()
		if err != nil {
			return err
		}

		tokens := make(map[string]string, len(args))
		order := make([]string, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", arg)
			}
			token, err := obfuscator.Encode(id)
			if err != nil {
				return fmt.Errorf("id %d: %w", id, err)
			}
			tokens[arg] = token
			order = append(order, arg)
		}

		return printResult(cmd.OutOrStdout(), tokens, func(w io.Writer) {
			for _, arg := range order {
				fmt.Fprintf(w, "%s\t%s\n", arg, tokens[arg])
			}
		})
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <token>...",
	Short: "Decode permalink tokens back to ids",
	Long:  "decode prints the id behind each token, or \"invalid\" for tokens this deployment did not issue.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obfuscator, err := loadObfuscator()
		if err != nil {
			return err
		}

		ids := make(map[string]*int64, len(args))
		for _, token := range args {
			if id, ok := obfuscator.Decode(token); ok {
				ids[token] = &id
			} else {
				ids[token] = nil
			}
		}

		return printResult(cmd.OutOrStdout(), ids, func(w io.Writer) {
			for _, token := range args {
				if id := ids[token]; id != nil {
					fmt.Fprintf(w, "%s\t%d\n", token, *id)
				} else {
					fmt.Fprintf(w, "%s\tinvalid\n", token)
				}
			}
		})
	},
}
