package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legojeon/report-coach/internal/domain"
)

func newSearchCmd(env *string) *cobra.Command {
	var k int
	var userID string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one search and print the JSON response",
		Example: `  reportcoach search "미세먼지 저감 장치 실험"
  reportcoach search --k 3 "물리 분야 대통령상 수상 보고서"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *env)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.searchService()
			if err != nil {
				return err
			}
			if k <= 0 {
				k = a.cfg.Search.DefaultK
			}
			ctx = domain.ContextWithCaller(ctx, domain.Caller{UserID: userID})
			resp, err := svc.Search(ctx, strings.Join(args, " "), k)
			if err != nil {
				return err //nolint:wrapcheck // printed as-is
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(resp) //nolint:wrapcheck // stdout
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of results (default: search.default_k)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID for usage attribution")
	return cmd
}
