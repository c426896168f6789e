package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"catalog-cart-service/internal/cart"
	"catalog-cart-service/internal/domain"
)

var outputFormat string

// cartCmd groups the commands that work on the persisted cart directly.
var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Inspect or edit the persisted cart",
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the cart entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd.Context(), func(s *cart.Store) error {
			return listCart(cmd.OutOrStdout(), s, outputFormat)
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove [item-id]",
	Short: "Remove an item from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd.Context(), func(s *cart.Store) error {
			return removeFromCart(cmd.Context(), cmd.OutOrStdout(), s, args[0])
		})
	},
}

func init() {
	cartListCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json or yaml")

	cartCmd.AddCommand(cartListCmd)
	cartCmd.AddCommand(cartRemoveCmd)
}

// withCart opens the configured cart store, hydrates it and runs fn.
func withCart(ctx context.Context, fn func(*cart.Store) error) error {
	pg, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pg != nil {
		defer pg.Close()
	}

	kv, err := openCartStore(ctx, cfg, pg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn("error closing cart store", zap.Error(err))
		}
	}()

	s := cart.New(kv, logger)
	if _, err := s.Hydrate(ctx); err != nil {
		return err
	}
	return fn(s)
}

func listCart(w io.Writer, s *cart.Store, format string) error {
	entries := s.List()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

func removeFromCart(ctx context.Context, w io.Writer, s *cart.Store, arg string) error {
	id, err := domain.ParseItemKey(arg)
	if err != nil {
		return fmt.Errorf("invalid item id %q", arg)
	}
	present := s.Contains(id)
	if err := s.Remove(ctx, id); err != nil {
		return err
	}
	if present {
		_, err = fmt.Fprintf(w, "removed item %s\n", strconv.FormatInt(id, 10))
	} else {
		_, err = fmt.Fprintf(w, "item %s was not in the cart\n", strconv.FormatInt(id, 10))
	}
	return err
}
