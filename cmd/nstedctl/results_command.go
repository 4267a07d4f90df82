package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/nsted/internal/adapters/repository"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			store, err := repository.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				cmd.Println("No results stored.")
				return nil
			}
			rows := make([][]string, len(list))
			for i, s := range list {
				rows[i] = []string{
					s.ID,
					s.CreatedAt.Local().Format(time.DateTime),
					s.FileName,
					strconv.Itoa(s.NumTrials),
					s.PredictedClass,
					formatFloat(s.MeanScore),
				}
			}
			printTable(cmd, renderTable([]string{"ID", "Created", "File", "Trials", "Class", "Score"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}
