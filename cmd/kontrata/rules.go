package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the loaded law rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			book, err := loadBook(cfg)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), book)
			return nil
		},
	}
}

func printRules(w io.Writer, book *rules.Book) {
	for _, set := range book.Sets() {
		fmt.Fprintf(w, "%s (%s)\n", set.ContractType, set.Source())
		for _, cl := range set.RequiredClauses {
			var notes []string
			if cl.Mandatory {
				notes = append(notes, "mandatory")
			}
			if cl.Default != nil {
				notes = append(notes, "default: "+*cl.Default)
			}
			line := "  clause " + contract.FieldTitle(cl.Name)
			if len(notes) > 0 {
				line += " [" + strings.Join(notes, ", ") + "]"
			}
			fmt.Fprintln(w, line)
		}
		for _, field := range set.ConstraintFields() {
			c := set.Constraints[field]
			line := "  limit " + contract.FieldTitle(field)
			if c.Min != nil {
				line += fmt.Sprintf(" min=%g", *c.Min)
			}
			if c.Max != nil {
				line += fmt.Sprintf(" max=%g", *c.Max)
			}
			fmt.Fprintln(w, line)
		}
	}
}
