package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBreedsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breeds",
		Short: "Browse the breed catalog",
	}
	cmd.AddCommand(newBreedsSearchCommand(ctx))
	cmd.AddCommand(newBreedsUsesCommand(ctx))
	return cmd
}

func newBreedsSearchCommand(ctx *commandContext) *cobra.Command {
	var term, use string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search breeds by name or origin and filter by primary use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := ctx.client()
			defer c.Close()

			list, err := c.SearchBreeds(cmd.Context(), term, use)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tORIGIN\tUSE\tWEIGHT")
			for _, b := range list.Breeds {
				ch := b.Characteristics
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, ch.Origin, ch.PrimaryUse, ch.AverageWeight)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, list.Summary())
			return nil
		},
	}
	cmd.Flags().StringVarP(&term, "query", "q", "", "Case-insensitive name or origin substring")
	cmd.Flags().StringVar(&use, "use", "", "Exact primary use, e.g. Dairy")
	return cmd
}

func newBreedsUsesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "uses",
		Short: "List the distinct primary uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := ctx.client()
			defer c.Close()

			uses, err := c.Uses(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range uses {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}
