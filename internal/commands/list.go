package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pfm/internal/auth"
	"pfm/internal/core"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func newBanksCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banks",
		Short: "Work with banks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List banks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := g.authed(cmd.Context())
			if err != nil {
				return err
			}
			banks, err := g.client().ListBanks(ctx)
			if err != nil {
				return describe(err)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tCOUNTRY\tINITIALS")
			for _, b := range banks {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.ID, b.Name, b.Country, b.Initials)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func newAccountsCommand(g *globals) *cobra.Command {
	var owner int64
	var withDeleted bool

	list := &cobra.Command{
		Use:   "list",
		Short: "List bank accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := g.authed(cmd.Context())
			if err != nil {
				return err
			}
			var accounts []core.BankAccount
			if owner > 0 {
				accounts, err = g.client().ListBankAccountsByOwner(ctx, owner)
			} else {
				accounts, err = g.client().ListBankAccounts(ctx)
			}
			if err != nil {
				return describe(err)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNUMBER\tTYPE\tBANK\tOWNER\tBALANCE")
			for _, a := range accounts {
				if a.IsDeleted.IsDeleted() && !withDeleted {
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.AccountNumber, a.AccountType, a.Bank.Name, a.Owner.Name, core.FormatAmount(a.Balance))
			}
			return tw.Flush()
		},
	}
	list.Flags().Int64Var(&owner, "owner", 0, "only accounts of this owner id")
	list.Flags().BoolVar(&withDeleted, "deleted", false, "include deleted accounts")

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Work with bank accounts",
	}
	cmd.AddCommand(list)
	return cmd
}

func newTransactionsCommand(g *globals) *cobra.Command {
	var limit int

	list := &cobra.Command{
		Use:   "list",
		Short: "List the signed in user's transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := g.authed(cmd.Context())
			if err != nil {
				return err
			}
			id, err := auth.Decode(g.token)
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			if id.UserID == 0 {
				return fmt.Errorf("token for %s carries no user id", id.Email)
			}

			var txs []core.Transaction
			if limit > 0 {
				txs, err = g.client().RecentTransactions(ctx, id.UserID, limit)
			} else {
				txs, err = g.client().ListTransactionsByUser(ctx, id.UserID)
			}
			if err != nil {
				return describe(err)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tDESCRIPTION")
			for _, t := range txs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					t.ID, t.TransactionDate, t.TransactionType, core.FormatAmount(t.Amount), t.Description)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "only the N most recent")

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Work with transactions",
	}
	cmd.AddCommand(list)
	return cmd
}
