package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/flipstore/internal/export"
	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// accountView is the JSON form of an account summary.
type accountView struct {
	Name         string         `json:"name"`
	LastStoredAt *time.Time     `json:"last_stored_at,omitempty"`
	Items        []itemView     `json:"items"`
	RecipeGroups []groupView    `json:"recipe_groups"`
	Slots        map[int]string `json:"slots"`
}

type itemView struct {
	ItemID   int    `json:"item_id"`
	Name     string `json:"name"`
	Offers   int    `json:"offers"`
	Profit   int64  `json:"profit"`
	Favorite bool   `json:"favorite,omitempty"`
}

type groupView struct {
	Recipe string `json:"recipe"`
	Flips  int    `json:"flips"`
}

func newAccountView(name string, acc *types.Account) accountView {
	v := accountView{
		Name:         name,
		LastStoredAt: acc.LastStoredAt,
		Items:        make([]itemView, 0, len(acc.Trades)),
		RecipeGroups: make([]groupView, 0, len(acc.RecipeFlipGroups)),
		Slots:        make(map[int]string, len(acc.LastOffers)),
	}
	for _, it := range acc.Trades {
		v.Items = append(v.Items, itemView{
			ItemID:   it.ItemID,
			Name:     it.ItemName,
			Offers:   len(it.History),
			Profit:   export.Profit(it, time.Time{}),
			Favorite: it.Favorite,
		})
	}
	for _, g := range acc.RecipeFlipGroups {
		v.RecipeGroups = append(v.RecipeGroups, groupView{Recipe: g.RecipeName, Flips: len(g.Flips)})
	}
	for slot, o := range acc.LastOffers {
		v.Slots[slot] = o.UUID
	}
	return v
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <account>",
		Short: "Summarize an account's items, recipe groups and slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			backend, err := a.attachBackend(false)
			if err != nil {
				return err
			}
			defer backend.Detach()

			if err := requireAccount(backend, name); err != nil {
				return err
			}
			view := newAccountView(name, backend.LoadAccount(name))
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), view)
			}
			printAccount(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func printAccount(w io.Writer, v accountView) {
	fmt.Fprintf(w, "Account: %s\n", v.Name)
	if v.LastStoredAt != nil {
		fmt.Fprintf(w, "Last stored: %s\n", v.LastStoredAt.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(w, "Items (%d):\n", len(v.Items))
	for _, it := range v.Items {
		fmt.Fprintf(w, "  %d %s: %d offer(s), profit %d\n", it.ItemID, it.Name, it.Offers, it.Profit)
	}

	fmt.Fprintf(w, "Recipe groups (%d):\n", len(v.RecipeGroups))
	for _, g := range v.RecipeGroups {
		fmt.Fprintf(w, "  %s: %d flip(s)\n", g.Recipe, g.Flips)
	}

	slots := make([]int, 0, len(v.Slots))
	for slot := range v.Slots {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	fmt.Fprintf(w, "Slots (%d):\n", len(slots))
	for _, slot := range slots {
		fmt.Fprintf(w, "  %d: %s\n", slot, v.Slots[slot])
	}
}
