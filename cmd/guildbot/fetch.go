package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Guliveer/guildkit/internal/client"
	"github.com/Guliveer/guildkit/internal/model"
)

// fetchers maps a CLI kind to a lookup through the client's cache managers.
var fetchers = map[string]func(cmd *cobra.Command, c *client.Client, id string) (any, error){
	"server": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		return c.Servers.Fetch(cmd.Context(), id, false)
	},
	"channel": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		return c.Channels.Fetch(cmd.Context(), id, false)
	},
	"user": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		return c.Users.Fetch(cmd.Context(), id, false)
	},
	"member": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		key, err := model.ParseMemberKey(id)
		if err != nil {
			return nil, err
		}
		return c.Members.Fetch(cmd.Context(), key, false)
	},
	"ban": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		key, err := model.ParseMemberKey(id)
		if err != nil {
			return nil, err
		}
		return c.Bans.Fetch(cmd.Context(), key, false)
	},
	"message": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		key, err := model.ParseMessageKey(id)
		if err != nil {
			return nil, err
		}
		return c.Messages.Fetch(cmd.Context(), key, false)
	},
	"note": func(cmd *cobra.Command, c *client.Client, id string) (any, error) {
		key, err := model.ParseNoteKey(id)
		if err != nil {
			return nil, err
		}
		return c.Notes.Fetch(cmd.Context(), key, false)
	},
}

func fetchKinds() []string {
	kinds := make([]string, 0, len(fetchers))
	for k := range fetchers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func newFetchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <kind> <id>",
		Short: "Fetch one entity over REST and print it as JSON",
		Long: "Fetch one entity over REST and print it as JSON.\n\n" +
			"Kinds: " + strings.Join(fetchKinds(), ", ") + ".\n" +
			"Members and bans take server/user ids, messages channel/message, notes channel/note.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: fetchKinds(),
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch, ok := fetchers[args[0]]
			if !ok {
				return fmt.Errorf("unknown kind %q (known: %s)", args[0], strings.Join(fetchKinds(), ", "))
			}

			cfg, log, err := flags.setup()
			if err != nil {
				return err
			}
			opts, err := cfg.ClientOptions(log)
			if err != nil {
				return err
			}
			c, err := client.New(opts)
			if err != nil {
				return err
			}

			entity, err := fetch(cmd, c, args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entity)
		},
	}
}
