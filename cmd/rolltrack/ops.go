package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/rolltrack/internal/config"
	"github.com/dharsanguruparan/rolltrack/internal/inventory"
	"github.com/dharsanguruparan/rolltrack/internal/ledger"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

func newUnloadCommand(cc *commandContext) *cobra.Command {
	var exposed, waste float64
	var magazine, note string
	cmd := &cobra.Command{
		Use:   "unload <roll-id>",
		Short: "Record a roll coming out of the camera",
		Long: `Marks an on-set Fresh or Short End roll as Exposed. Whatever is left after the
exposed footage and the waste becomes a new Short End when it is longer than 40 ft.
Waste defaults to ROLLTRACK_DEFAULT_WASTE_FT.`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completeCandidates(cmd, cc)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			in := inventory.UnloadInput{
				RollID:    args[0],
				ExposedFt: exposed,
				Magazine:  magazine,
				Note:      note,
			}
			if cmd.Flags().Changed("waste") {
				in.WasteFt = &waste
			}
			res, err := a.Service.Unload(cmd.Context(), cc.project(a), in)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, res)
			}
			printEvents(cmd, res.Summary, res.Events)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&exposed, "exposed", "e", 0, "Exposed footage in feet")
	cmd.Flags().Float64VarP(&waste, "waste", "w", 0, "Waste footage in feet")
	cmd.Flags().StringVarP(&magazine, "magazine", "m", "", "Magazine the roll was shot in")
	cmd.Flags().StringVarP(&note, "note", "n", "", "Free-form note")
	_ = cmd.MarkFlagRequired("exposed")
	_ = cmd.RegisterFlagCompletionFunc("magazine", completeMagazines)
	return cmd
}

func newShipCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ship",
		Short: "Send every exposed roll to the lab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			outcome, err := a.Service.Ship(cmd.Context(), cc.project(a))
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, outcome)
			}
			printEvents(cmd, outcome.Summary, outcome.Events)
			if outcome.ShipmentID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Shipment %s", outcome.ShipmentID)
				if outcome.ManifestQueued {
					fmt.Fprint(cmd.OutOrStdout(), ", manifest queued")
				}
				fmt.Fprintln(cmd.OutOrStdout(), ".")
			}
			return nil
		},
	}
}

func newCreateCommand(cc *commandContext) *cobra.Command {
	var roll model.Roll
	var status, exposedDate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a roll by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := model.ParseStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q", status)
			}
			roll.Status = s
			if exposedDate != "" {
				d, err := time.Parse(model.DateLayout, exposedDate)
				if err != nil {
					return fmt.Errorf("exposed date: %w", err)
				}
				roll.ExposedDate = &d
			}
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			created, err := a.Service.Create(cmd.Context(), cc.project(a), roll)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Roll %s created.\n", created.RollID)
			return nil
		},
	}
	cmd.Flags().StringVar(&roll.RollID, "id", "", "Roll id")
	cmd.Flags().StringVar(&roll.Emulsion, "emulsion", "", "Emulsion, e.g. \"5219 (500T)\"")
	cmd.Flags().Float64Var(&roll.LengthFt, "length", 0, "Length in feet")
	cmd.Flags().StringVar(&status, "status", string(model.StatusFresh), "Status")
	cmd.Flags().StringVar(&roll.Location, "location", "", "Where the roll is stored")
	cmd.Flags().StringVar(&roll.Magazine, "magazine", "", "Magazine")
	cmd.Flags().StringVar(&roll.Notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&exposedDate, "exposed-date", "", "Exposed date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.RegisterFlagCompletionFunc("magazine", completeMagazines)
	return cmd
}

func newEditCommand(cc *commandContext) *cobra.Command {
	var emulsion, status, location, magazine, notes, exposedDate string
	var length float64
	cmd := &cobra.Command{
		Use:   "edit <roll-id>",
		Short: "Overwrite fields of a roll; any status may be set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch model.RollPatch
			if flags.Changed("emulsion") {
				patch.Emulsion = &emulsion
			}
			if flags.Changed("length") {
				patch.LengthFt = &length
			}
			if flags.Changed("status") {
				s, ok := model.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				patch.Status = &s
			}
			if flags.Changed("location") {
				patch.Location = &location
			}
			if flags.Changed("magazine") {
				patch.Magazine = &magazine
			}
			if flags.Changed("notes") {
				patch.Notes = &notes
			}
			if flags.Changed("exposed-date") {
				d, err := time.Parse(model.DateLayout, exposedDate)
				if err != nil {
					return fmt.Errorf("exposed date: %w", err)
				}
				patch.ExposedDate = &d
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to change; pass at least one field flag")
			}
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			updated, err := a.Service.Edit(cmd.Context(), cc.project(a), args[0], patch)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, updated)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Roll %s updated.\n", updated.RollID)
			return nil
		},
	}
	cmd.Flags().StringVar(&emulsion, "emulsion", "", "Emulsion")
	cmd.Flags().Float64Var(&length, "length", 0, "Length in feet")
	cmd.Flags().StringVar(&status, "status", "", "Status")
	cmd.Flags().StringVar(&location, "location", "", "Location")
	cmd.Flags().StringVar(&magazine, "magazine", "", "Magazine")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&exposedDate, "exposed-date", "", "Exposed date (YYYY-MM-DD)")
	_ = cmd.RegisterFlagCompletionFunc("magazine", completeMagazines)
	return cmd
}

func newResetCommand(cc *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace every roll of the project with its opening stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			project := cc.project(a)
			if !confirm {
				return fmt.Errorf("reset replaces every roll in %s; pass --yes to confirm", project)
			}
			rolls, err := a.Service.Reset(cmd.Context(), project)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd, rolls)
			}
			printEvents(cmd, fmt.Sprintf("Project %s reset.", project), []ledger.Event{{
				Action: ledger.ActionReset,
				Info:   fmt.Sprintf("%d rolls", len(rolls)),
			}})
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the reset")
	return cmd
}

func completeMagazines(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	out := make([]string, 0, len(cfg.App.Magazines))
	for _, m := range cfg.App.Magazines {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeCandidates(cmd *cobra.Command, cc *commandContext) ([]string, cobra.ShellCompDirective) {
	a, err := cc.ensureApp(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	rolls, err := a.Service.Candidates(cmd.Context(), cc.project(a))
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	out := make([]string, 0, len(rolls))
	for _, r := range rolls {
		out = append(out, fmt.Sprintf("%s\t%s ft %s", r.RollID, feet(r.LengthFt), r.Emulsion))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
