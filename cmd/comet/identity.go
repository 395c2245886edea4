package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/knowfox/comet/identity"
)

func newIdentityCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage client certificates",
	}
	cmd.AddCommand(
		newIdentityNewCmd(flags),
		newIdentityListCmd(flags),
		newIdentityDeleteCmd(flags),
		newIdentityBindCmd(flags),
	)
	return cmd
}

func newIdentityNewCmd(flags *rootFlags) *cobra.Command {
	var key string
	var urls []string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Generate a client certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			name := args[0]
			if key == "" {
				key = strings.ToLower(strings.Join(strings.Fields(name), "-"))
			}
			if _, err := a.keystore.Generate(key, name); err != nil {
				return err
			}
			id, err := a.registry.Insert(cmd.Context(), key, name)
			if err != nil {
				return err
			}
			if len(urls) > 0 {
				ident, err := a.registry.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				ident.URLs = urls
				if err := a.registry.Update(cmd.Context(), ident); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "identity %d created (key %s)\n", id, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "keystore alias (derived from the name when empty)")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "URL prefix to use the identity for (repeatable)")
	return cmd
}

func newIdentityListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.registry.All(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKEY\tURLS")
			for _, ident := range all {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ident.ID, ident.Name, ident.Key, strings.Join(ident.URLs, ","))
			}
			return tw.Flush()
		},
	}
}

func newIdentityDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete identities and their certificates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var idents []identity.Identity
			for _, id := range ids {
				ident, err := a.registry.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				idents = append(idents, ident)
			}
			return a.provider.Delete(cmd.Context(), idents...)
		},
	}
}

func newIdentityBindCmd(flags *rootFlags) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "bind <id> <url-prefix>...",
		Short: "Use an identity for URL prefixes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ident, err := a.registry.Get(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			for _, prefix := range args[1:] {
				if remove {
					ident.URLs = slices.DeleteFunc(ident.URLs, func(u string) bool { return u == prefix })
				} else if !slices.Contains(ident.URLs, prefix) {
					ident.URLs = append(ident.URLs, prefix)
				}
			}
			return a.registry.Update(cmd.Context(), ident)
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "unbind the prefixes instead")
	return cmd
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid identity id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
