package main

import (
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List checkpointed sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoints, err := a.checkpoints.List(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(checkpoints, func(i, j int) bool {
				return checkpoints[i].Timestamp.After(checkpoints[j].Timestamp)
			})

			rows := make([][]string, len(checkpoints))
			for i, cp := range checkpoints {
				rows[i] = []string{cp.ID, cp.Step, cp.Timestamp.Local().Format(time.DateTime), strconv.Itoa(cp.ResumeCount)}
			}
			return a.output().Print([]string{"SESSION", "LAST STEP", "SAVED", "RESUMES"}, rows, checkpoints)
		},
	}
}
