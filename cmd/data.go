package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/chrisdamba/menumanager/internal/client"
	"github.com/chrisdamba/menumanager/internal/tree"
	"github.com/spf13/cobra"
)

// Commands in this file talk to a running server at api_url.

func newClient() *client.Client {
	return client.New(cfg.APIURL)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the whole menu document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := newClient().Fetch(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("fetched document", "revision", snap.Revision)
		return printJSON(snap.Document)
	},
}

// mutationFromArgs builds a mutation from a path argument, an optional JSON
// value argument and the --if-match flag.
func mutationFromArgs(cmd *cobra.Command, op tree.Op, args []string) (tree.Mutation, error) {
	path, err := tree.ParsePath(args[0])
	if err != nil {
		return tree.Mutation{}, err
	}
	m := tree.Mutation{Op: op, Path: path}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &m.Value); err != nil {
			return tree.Mutation{}, fmt.Errorf("newData is not valid JSON: %w", err)
		}
	}
	if cmd.Flags().Changed("if-match") {
		m.CheckRevision = true
		m.ExpectedRevision, _ = cmd.Flags().GetInt64("if-match")
	}
	return m, nil
}

func mutationCmd(op tree.Op, use, short string, args cobra.PositionalArgs, done string) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mutationFromArgs(cmd, op, args)
			if err != nil {
				return err
			}
			if err := newClient().Apply(cmd.Context(), m); err != nil {
				var opErr *client.OperationError
				if errors.As(err, &opErr) && opErr.Detail != "" {
					return fmt.Errorf("%w: %s", err, opErr.Detail)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		},
	}
	c.Flags().Int64("if-match", 0, "Only apply when the document is still at this revision")
	return c
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search restaurants, menus, categories or items",
	Example: `  menumanager search --area items --option name --name pizza
  menumanager search --reward-eligible true
  menumanager search --dietary vegan`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var q tree.SearchQuery
		q.Area, _ = cmd.Flags().GetString("area")
		q.Option, _ = cmd.Flags().GetString("option")
		q.Name, _ = cmd.Flags().GetString("name")
		q.RewardEligible, _ = cmd.Flags().GetString("reward-eligible")
		q.Dietary, _ = cmd.Flags().GetString("dietary")
		q.ID, _ = cmd.Flags().GetString("id")

		results, err := newClient().Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate <item-id>",
	Short: "Print the current path of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := newClient().Locate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path.String())
		return nil
	},
}

func init() {
	searchCmd.Flags().String("area", "", "restaurants, menus, categories or items")
	searchCmd.Flags().String("option", "", "name or contains (with --area)")
	searchCmd.Flags().String("name", "", "Name or value to look for (* matches all)")
	searchCmd.Flags().String("reward-eligible", "", "true or false")
	searchCmd.Flags().String("dietary", "", "Dietary requirement (* matches any)")
	searchCmd.Flags().String("id", "", "Item id (* matches all)")

	rootCmd.AddCommand(
		getCmd,
		mutationCmd(tree.OpUpdate, "update <path> <newData>", "Replace the value at path", cobra.ExactArgs(2), "Data updated"),
		mutationCmd(tree.OpAdd, "add <path> <newData>", "Append newData to the array at path", cobra.ExactArgs(2), "Data added"),
		mutationCmd(tree.OpDelete, "delete <path>", "Remove the array element at path", cobra.ExactArgs(1), "Data deleted"),
		searchCmd,
		locateCmd,
	)
}
