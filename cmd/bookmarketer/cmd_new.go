package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/bookmarketer/internal/ingest"
	"github.com/vampirenirmal/bookmarketer/internal/session"
)

type newResult struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	WordCount int    `json:"word_count"`
}

func newNewCmd(a *app) *cobra.Command {
	var bookPath, title string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Ingest a book and start a session",
		Long: `Ingest a manuscript (.txt, .md, .docx or .pdf), create a session for it
and checkpoint the session. The session id is printed for later commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := ingest.LoadFile(bookPath, title)
			if err != nil {
				return err
			}
			sess := session.New(book, session.WithLogger(a.logger))
			if err := session.Save(cmd.Context(), a.checkpoints, sess); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			out := a.output()
			out.Success(fmt.Sprintf("Session created: %s", sess.ID()))
			res := newResult{SessionID: sess.ID(), Title: book.Title, WordCount: book.WordCount}
			return out.Print(
				[]string{"SESSION", "TITLE", "WORDS"},
				[][]string{{res.SessionID, res.Title, strconv.Itoa(res.WordCount)}},
				res,
			)
		},
	}

	cmd.Flags().StringVar(&bookPath, "book", "", "Manuscript file")
	cmd.Flags().StringVar(&title, "title", "", "Book title (inferred from the file when empty)")
	_ = cmd.MarkFlagRequired("book")
	return cmd
}
