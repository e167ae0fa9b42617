package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/interview"
)

var interviewsCmd = &cobra.Command{
	Use:     "interviews",
	Aliases: []string{"interview"},
	Short:   "Browse interview history",
}

var interviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your interviews, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Sessions []*domain.InterviewSession `json:"sessions"`
		}
		if err := newClient(cmd).do(cmd.Context(), http.MethodGet, "/v1/interviews", nil, &resp); err != nil {
			return err
		}
		if len(resp.Sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No interviews yet.")
			return nil
		}
		printSessions(cmd.OutOrStdout(), resp.Sessions)
		return nil
	},
}

var interviewsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an interview with its feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap interview.Snapshot
		if err := newClient(cmd).do(cmd.Context(), http.MethodGet, "/v1/interviews/"+args[0], nil, &snap); err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

var interviewsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an interview from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("deleting cannot be undone; pass --yes to confirm")
		}
		if err := newClient(cmd).do(cmd.Context(), http.MethodDelete, "/v1/interviews/"+args[0]+"?confirm=true", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Deleted")
		return nil
	},
}

func init() {
	interviewsDeleteCmd.Flags().Bool("yes", false, "Confirm the deletion")
	interviewsCmd.AddCommand(interviewsListCmd, interviewsShowCmd, interviewsDeleteCmd)
}

func printSessions(w io.Writer, sessions []*domain.InterviewSession) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tDIFFICULTY\tSTARTED\tSTATUS")
	for _, s := range sessions {
		status := "in progress"
		if s.CompletedAt != nil {
			status = "completed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Subject, s.Difficulty, s.StartedAt.Local().Format(time.DateTime), status)
	}
	tw.Flush()
}

func printSnapshot(w io.Writer, snap interview.Snapshot) {
	sess := snap.Session
	if sess == nil {
		fmt.Fprintf(w, "State: %s\n", snap.State)
		return
	}
	fmt.Fprintf(w, "Interview %s (%s, %s)\n", sess.ID, sess.Subject, sess.Difficulty)
	fmt.Fprintf(w, "State: %s\n", snap.State)
	if snap.State == interview.StateAnswering {
		fmt.Fprintf(w, "Time left: %s\n", time.Duration(snap.Remaining)*time.Second)
	}
	fmt.Fprintln(w)

	for i, q := range sess.Questions {
		fmt.Fprintf(w, "%d. %s\n", i+1, q.Text)
		if i < len(sess.Answers) && strings.TrimSpace(sess.Answers[i]) != "" {
			fmt.Fprintf(w, "   Answer:  %s\n", sess.Answers[i])
		}
		if q.Good != nil {
			fmt.Fprintf(w, "   Good:    %s\n", *q.Good)
		}
		if q.Missing != nil {
			fmt.Fprintf(w, "   Missing: %s\n", *q.Missing)
		}
	}
	if sess.Summary != nil {
		fmt.Fprintf(w, "\nSummary: %s\n", *sess.Summary)
	}
}
