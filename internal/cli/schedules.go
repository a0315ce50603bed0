package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lora-control/internal/lora"
	"lora-control/internal/schedules"
)

func newSchedulesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedules",
		Aliases: []string{"schedule"},
		Short:   "Manage group schedules",
	}
	cmd.AddCommand(
		newSchedulesListCommand(a),
		newSchedulesCreateCommand(a),
		newSchedulesToggleCommand(a),
		newSchedulesDeleteCommand(a),
	)
	return cmd
}

func activeLabel(active bool) string {
	if active {
		return "activa"
	}
	return "inactiva"
}

func (a *app) scheduleRows(list []lora.Schedule, names map[string]string) [][]string {
	rows := make([][]string, 0, len(list))
	for _, sc := range list {
		group := names[sc.GroupID]
		if group == "" {
			group = sc.GroupID
		}
		days := strings.Join(sc.Days, ",")
		if days == "" {
			days = "-"
		}
		state := a.out.Gray(activeLabel(false))
		if sc.Active {
			state = a.out.Green(activeLabel(true))
		}
		rows = append(rows, []string{sc.ID, group, sc.Start, sc.End, string(sc.Frequency), days, state})
	}
	return rows
}

func newSchedulesListCommand(a *app) *cobra.Command {
	var groupRef string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules, optionally for one group",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			groups, err := s.ctl.Groups().List(ctx)
			if err != nil {
				return err
			}
			names := make(map[string]string, len(groups))
			for _, g := range groups {
				names[g.ID] = g.Name
			}
			groupID := ""
			if groupRef != "" {
				g, err := s.ctl.Groups().Find(ctx, groupRef)
				if err != nil {
					return err
				}
				groupID = g.ID
			}

			list, err := s.ctl.Schedules().List(ctx, groupID)
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(list)
			}
			if len(list) == 0 {
				a.out.Info(a.out.Gray("No hay programaciones"))
				return nil
			}
			return a.out.Table([]string{"ID", "GRUPO", "INICIO", "FIN", "FRECUENCIA", "DÍAS", "ESTADO"}, a.scheduleRows(list, names))
		},
	}
	cmd.Flags().StringVarP(&groupRef, "group", "g", "", "Group id or name")
	return cmd
}

func newSchedulesCreateCommand(a *app) *cobra.Command {
	var (
		groupRef  string
		start     string
		end       string
		frequency string
		days      []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schedule for a group",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			freq, err := schedules.ParseFrequency(frequency)
			if err != nil {
				return UsageError{Msg: err.Error()}
			}
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			g, err := s.ctl.Groups().Find(ctx, groupRef)
			if err != nil {
				return err
			}
			created, err := s.ctl.Schedules().Create(ctx, lora.NewSchedule{
				GroupID:   g.ID,
				Start:     start,
				End:       end,
				Frequency: freq,
				Days:      days,
			})
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(created)
			}
			a.out.Success(fmt.Sprintf("✅ Programación creada para %s (%s-%s)", g.Name, start, end))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&groupRef, "group", "g", "", "Group id or name")
	f.StringVar(&start, "start", "", "Start time HH:MM")
	f.StringVar(&end, "end", "", "End time HH:MM")
	f.StringVar(&frequency, "frequency", string(lora.FrequencyDaily), "una_vez, diario or dias_especificos")
	f.StringSliceVar(&days, "days", nil, "Days for dias_especificos, e.g. lunes,miércoles")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newSchedulesToggleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Activate or deactivate a schedule",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			current, err := s.ctl.Schedules().Find(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := s.ctl.Schedules().Toggle(ctx, current.ID, !current.Active)
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(updated)
			}
			a.out.Success(fmt.Sprintf("✅ Programación %s %s", updated.ID, activeLabel(updated.Active)))
			return nil
		},
	}
}

func newSchedulesDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a schedule",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.confirm(fmt.Sprintf("¿Eliminar la programación %s?", args[0]), yes)
			if err != nil {
				return err
			}
			if !ok {
				a.out.Info("Cancelado")
				return nil
			}
			s, err := a.open(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.ctl.Schedules().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(map[string]string{"id": args[0], "estado": "eliminada"})
			}
			a.out.Success("✅ Programación eliminada")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
