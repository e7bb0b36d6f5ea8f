package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/bookmarketer/internal/session"
)

type stepStatus struct {
	Step      string   `json:"step"`
	Status    string   `json:"status"`
	BlockedBy []string `json:"blocked_by,omitempty"`
	Rounds    int      `json:"rounds"`
	Current   bool     `json:"current,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show step progress of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.readSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			steps, err := statusOf(sess)
			if err != nil {
				return err
			}

			rows := make([][]string, len(steps))
			for i, s := range steps {
				name := s.Step
				if s.Current {
					name += " *"
				}
				rows[i] = []string{name, s.Status, strings.Join(s.BlockedBy, ", "), strconv.Itoa(s.Rounds)}
			}

			out := a.output()
			book := sess.Book()
			out.Success(book.Title + " (" + strconv.Itoa(book.WordCount) + " words), created " + sess.CreatedAt().Format(time.RFC3339))
			return out.Print([]string{"STEP", "STATUS", "BLOCKED BY", "ROUNDS"}, rows, steps)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func statusOf(sess *session.Session) ([]stepStatus, error) {
	order := session.Catalog().Order()
	steps := make([]stepStatus, 0, len(order))
	for _, id := range order {
		st := stepStatus{
			Step:    string(id),
			Rounds:  sess.Rounds(id),
			Current: sess.CurrentStep() == id,
		}
		missing, err := sess.BlockedBy(id)
		if err != nil {
			return nil, err
		}
		switch {
		case sess.Completed(id):
			st.Status = "complete"
		case len(missing) == 0:
			st.Status = "accessible"
		default:
			st.Status = "blocked"
			st.BlockedBy = missing
		}
		steps = append(steps, st)
	}
	return steps, nil
}
