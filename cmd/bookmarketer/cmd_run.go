package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/bookmarketer/internal/modules"
	"github.com/vampirenirmal/bookmarketer/internal/phase"
	"github.com/vampirenirmal/bookmarketer/internal/session"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

type stepFlags struct {
	focus    string
	count    int
	titles   []string
	covers   []string
	blurbs   []string
	personas []string
	testType string
	optionA  string
	optionB  string
	goals    string
}

// runItem is one printed invocation outcome.
type runItem struct {
	Step     workflow.StepID `json:"step"`
	Item     string          `json:"item"`
	Outcome  string          `json:"outcome"`
	Method   string          `json:"method,omitempty"`
	Attempts int             `json:"attempts"`
	Duration string          `json:"duration"`
	Error    string          `json:"error,omitempty"`
	Record   any             `json:"record,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	var sessionID string
	var f stepFlags

	cmd := &cobra.Command{
		Use:   "run STEP",
		Short: "Run a workflow step in a session",
		Long: `Run one workflow step against a checkpointed session.

Steps: ` + strings.Join(stepNames(), ", ") + `

Feedback steps run once per --title, --cover or --blurb value, several at a
time. A failed item never undoes its siblings. The session is checkpointed
after every run that completed at least one item.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: stepNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			step := workflow.StepID(args[0])
			if _, ok := session.Catalog().Step(step); !ok {
				return fmt.Errorf("%w: %s", workflow.ErrUnknownStep, step)
			}
			items, err := f.items(step)
			if err != nil {
				return err
			}

			sess, err := a.loadSession(ctx, sessionID)
			if err != nil {
				return err
			}
			if err := sess.SetCurrentStep(step); err != nil && !workflow.IsNotAccessible(err) {
				return err
			}
			runner, err := a.runner(ctx, sess)
			if err != nil {
				return err
			}

			var results []phase.ItemResult
			if isFeedbackStep(step) {
				results = runner.RunEach(ctx, step, items)
			} else {
				res, err := runner.Run(ctx, step, items[0])
				results = []phase.ItemResult{{Inputs: items[0], Result: res, Err: err}}
			}

			rows := make([][]string, 0, len(results))
			printed := make([]runItem, 0, len(results))
			failed := 0
			for _, r := range results {
				item := describe(step, r)
				if r.Err != nil {
					failed++
				}
				printed = append(printed, item)
				rows = append(rows, []string{item.Item, item.Outcome, item.Method, strconv.Itoa(item.Attempts), item.Duration, item.Error})
			}

			if failed < len(results) {
				if err := session.Save(ctx, a.checkpoints, sess); err != nil {
					return fmt.Errorf("saving session: %w", err)
				}
			}

			out := a.output()
			if err := out.Print([]string{"ITEM", "OUTCOME", "METHOD", "ATTEMPTS", "DURATION", "ERROR"}, rows, printed); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d %s invocations failed", failed, len(results), step)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sessionID, "session", "", "Session id")
	flags.StringVar(&f.focus, "focus", "", "Landscape: area to emphasize")
	flags.IntVar(&f.count, "count", 0, "Audience: number of personas to generate (default 3)")
	flags.StringArrayVar(&f.titles, "title", nil, "Titles: candidate title (repeatable)")
	flags.StringArrayVar(&f.covers, "cover", nil, "Covers: cover concept (repeatable)")
	flags.StringArrayVar(&f.blurbs, "blurb", nil, "Blurbs: blurb text (repeatable)")
	flags.StringSliceVar(&f.personas, "persona", nil, "Feedback: persona ids to consult (default all)")
	flags.StringVar(&f.testType, "type", "title", "Testing: artifact type (title, cover or blurb)")
	flags.StringVar(&f.optionA, "a", "", "Testing: option A")
	flags.StringVar(&f.optionB, "b", "", "Testing: option B")
	flags.StringVar(&f.goals, "goals", "", "Strategy: campaign goals")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func stepNames() []string {
	order := session.Catalog().Order()
	names := make([]string, len(order))
	for i, id := range order {
		names[i] = string(id)
	}
	return names
}

func isFeedbackStep(step workflow.StepID) bool {
	switch step {
	case workflow.Titles, workflow.Covers, workflow.Blurbs:
		return true
	}
	return false
}

// items turns the flags into one Inputs per invocation.
func (f stepFlags) items(step workflow.StepID) ([]modules.Inputs, error) {
	base := modules.Inputs{
		Focus:      f.focus,
		Count:      f.count,
		PersonaIDs: f.personas,
		TestType:   f.testType,
		OptionA:    f.optionA,
		OptionB:    f.optionB,
		Goals:      f.goals,
	}
	if !isFeedbackStep(step) {
		return []modules.Inputs{base}, nil
	}

	artifacts := map[workflow.StepID][]string{
		workflow.Titles: f.titles,
		workflow.Covers: f.covers,
		workflow.Blurbs: f.blurbs,
	}[step]
	if len(artifacts) == 0 {
		flag := strings.TrimSuffix(string(step), "s")
		return nil, fmt.Errorf("%s needs at least one --%s", step, flag)
	}
	items := make([]modules.Inputs, len(artifacts))
	for i, artifact := range artifacts {
		in := base
		in.Artifact = artifact
		items[i] = in
	}
	return items, nil
}

func describe(step workflow.StepID, r phase.ItemResult) runItem {
	item := runItem{
		Step:     step,
		Item:     itemLabel(step, r.Inputs),
		Outcome:  "ok",
		Method:   string(r.Result.Method),
		Attempts: r.Result.Attempts,
		Duration: r.Result.Duration.Round(time.Millisecond).String(),
		Record:   r.Result.Record,
	}
	if r.Err != nil {
		item.Outcome = string(phase.Classify(r.Err))
		item.Error = rootCause(r.Err)
	}
	return item
}

func itemLabel(step workflow.StepID, in modules.Inputs) string {
	switch {
	case in.Artifact != "":
		return truncateLabel(in.Artifact, 40)
	case step == workflow.Testing:
		return fmt.Sprintf("%s: %s vs %s", in.TestType, truncateLabel(in.OptionA, 20), truncateLabel(in.OptionB, 20))
	}
	return string(step)
}

func truncateLabel(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

// rootCause drops the step prefix a *phase.StepError adds.
func rootCause(err error) string {
	var se *phase.StepError
	if errors.As(err, &se) && se.Cause != nil {
		return se.Cause.Error()
	}
	return err.Error()
}
