package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavelanni/interviewer/internal/bank"
)

func rolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List the roles of a question bank",
		RunE:  runRoles,
	}
	f := cmd.Flags()
	f.StringP("bank", "b", "questions.json", "Question bank file (JSON or YAML)")
	addLogFlags(f)
	return cmd
}

func runRoles(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	b, err := bank.Load(v.GetString("bank"))
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tQUESTIONS")
	for _, role := range b.Roles() {
		n, _ := b.Count(role)
		fmt.Fprintf(w, "%s\t%d\n", role, n)
	}
	return w.Flush()
}
