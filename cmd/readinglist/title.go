package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"readinglist/internal/titlefetch"
)

type titleResolver interface {
	Resolve(ctx context.Context, rawURL string) titlefetch.Result
}

func titleCmd(a *app) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "title URL...",
		Short: "Resolve and print page titles",
		Long: `Resolve the display title of each URL and print one line per URL:

  url<TAB>title<TAB>source

Output order follows the arguments.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, res := range resolveTitles(cmd.Context(), resolver, args, concurrency) {
				fmt.Fprintf(out, "%s\t%s\t%s\n", args[i], res.Title, res.Source)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "maximum concurrent fetches")
	return cmd
}

// resolveTitles resolves urls with at most limit fetches in flight. Results keep input order.
func resolveTitles(ctx context.Context, r titleResolver, urls []string, limit int) []titlefetch.Result {
	if limit < 1 {
		limit = 1
	}
	results := make([]titlefetch.Result, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = r.Resolve(ctx, u)
			return nil
		})
	}
	_ = g.Wait() // Resolve never fails
	return results
}
