package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/rolltrack/internal/footage"
	"github.com/dharsanguruparan/rolltrack/internal/ledger"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

func newProjectsCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			projects, err := a.Service.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, projects)
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{p.Name, p.CreatedAt.Local().Format("2006-01-02 15:04"), p.ID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Project", "Created", "ID"}, rows, nil, nil))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a project; the seed project starts with the opening stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			project, err := a.Service.CreateProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, project)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s created.\n", project.Name)
			return nil
		},
	})
	return cmd
}

func newListCommand(cc *commandContext) *cobra.Command {
	var statusFlags []string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rolls, by default the ones still available (Fresh and Short End)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlags(statusFlags)
			if err != nil {
				return err
			}
			if all {
				statuses = nil
			}
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rolls, err := a.Service.Rolls(cmd.Context(), cc.project(a), statuses...)
			if err != nil {
				return err
			}
			return printRolls(cmd, cc, rolls)
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", []string{string(model.StatusFresh), string(model.StatusShortEnd)}, "Statuses to include")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include every status")
	_ = cmd.RegisterFlagCompletionFunc("status", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(model.Statuses))
		for _, s := range model.Statuses {
			out = append(out, string(s))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newCandidatesCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "List the on-set rolls that can be unloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rolls, err := a.Service.Candidates(cmd.Context(), cc.project(a))
			if err != nil {
				return err
			}
			return printRolls(cmd, cc, rolls)
		},
	}
}

func newDashboardCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show set stock per emulsion and footage bound for the lab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			d, err := a.Service.Dashboard(cmd.Context(), cc.project(a))
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, d)
			}
			printDashboard(cmd, d)
			return nil
		},
	}
}

func printDashboard(cmd *cobra.Command, d ledger.Dashboard) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(d.Emulsions))
	for _, e := range d.Emulsions {
		rows = append(rows, []string{
			e.Emulsion,
			feet(e.FreshFt), e.FreshDuration,
			feet(e.ShortEndFt), e.ShortEndDuration,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Emulsion", "Fresh ft", "Fresh", "Short end ft", "Short end"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		nil,
	))
	fmt.Fprintf(out, "Available on set: %s ft (%s)\n", feet(d.AvailableFt), d.AvailableDuration)
	fmt.Fprintf(out, "Lab: %s ft (%s), %s ft exposed, %s ft sent\n",
		feet(d.LabFt), d.LabDuration, feet(d.ExposedFt), feet(d.SentToLabFt))
}

func printRolls(cmd *cobra.Command, cc *commandContext, rolls []model.Roll) error {
	if cc.jsonOutput {
		return writeJSON(cmd, rolls)
	}
	out := cmd.OutOrStdout()
	if len(rolls) == 0 {
		fmt.Fprintln(out, "No rolls.")
		return nil
	}
	rows := make([][]string, 0, len(rolls))
	var total float64
	for _, r := range rolls {
		total += r.LengthFt
		rows = append(rows, rollRow(r))
	}
	footer := []string{"Total", fmt.Sprintf("%d rolls", len(rolls)), feet(total), footage.Duration(total)}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Roll", "Emulsion", "Feet", "Duration", "Status", "Location", "Magazine", "Exposed", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		footer,
	))
	return nil
}

func rollRow(r model.Roll) []string {
	exposed := ""
	if r.ExposedDate != nil {
		exposed = r.ExposedDate.Format(model.DateLayout)
	}
	return []string{
		r.RollID, r.Emulsion, feet(r.LengthFt), footage.Duration(r.LengthFt),
		string(r.Status), r.Location, r.Magazine, exposed, r.Notes,
	}
}

func printEvents(cmd *cobra.Command, summary string, events []ledger.Event) {
	out := cmd.OutOrStdout()
	if summary != "" {
		fmt.Fprintln(out, summary)
	}
	for _, e := range events {
		line := "  " + e.Action
		if e.RollID != "" {
			line += " " + e.RollID
		}
		if e.Info != "" {
			line += ": " + e.Info
		}
		fmt.Fprintln(out, line)
	}
}

func parseStatusFlags(values []string) ([]model.Status, error) {
	var statuses []model.Status
	for _, raw := range values {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s, ok := model.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func feet(ft float64) string {
	return fmt.Sprintf("%g", ft)
}
