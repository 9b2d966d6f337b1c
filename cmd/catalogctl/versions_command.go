package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <videoId>",
		Short: "List stored subtitle versions of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.reviewService()
			if err != nil {
				return err
			}
			versions, err := svc.ListVersions(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintln(out, "No subtitle versions")
				return nil
			}

			rows := make([][]string, 0, len(versions))
			for _, v := range versions {
				current := ""
				if v.IsCurrent {
					current = "*"
				}
				author := v.DisplayName
				if author == "" {
					author = v.UserID
				}
				submitted := ""
				if v.SubmittedAt != nil {
					submitted = humanize.Time(*v.SubmittedAt)
				}
				rows = append(rows, []string{
					strconv.Itoa(v.Version),
					current,
					humanize.IBytes(uint64(v.SizeBytes)),
					fmt.Sprintf("+%d/-%d", v.AddedLines, v.RemovedLines),
					author,
					submitted,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Version", "Active", "Size", "Lines", "Author", "Submitted"},
				rows, 1, 3,
			))
			return nil
		},
	}
}

func newReapplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reapply-creators",
		Short: "Rewrite catalog creators through the current creator mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.reviewService()
			if err != nil {
				return err
			}
			n, err := svc.ReapplyCreatorMappings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", pluralize(n, "video", "videos"))
			return nil
		},
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}
