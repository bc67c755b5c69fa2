// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milkbottle/internal/mathconv"
)

var mathCmd = &cobra.Command{
	Use:   "math [latex...]",
	Short: "Convert LaTeX math in text to Markdown math",
	Long: `Math runs the math converter over its arguments, or over stdin when no
arguments are given. In latex mode delimiters are normalised to $ and $$; in
unicode mode every math span is rendered as plain Unicode text.`,
	RunE: runMath,
}

func init() {
	mathCmd.Flags().String("math-mode", "", "math rendering: latex or unicode (default latex)")
	pdfmilkerCmd.AddCommand(mathCmd)
}

func runMath(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"math-mode": "pdfmilker.math_mode"}); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	out := mathconv.New(cfg.MathMode).Convert(text)
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
	return nil
}
