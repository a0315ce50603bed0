package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lora-control/internal/lora"
)

func newGroupsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage Lora groups and run actions on them",
	}
	cmd.AddCommand(
		newGroupsListCommand(a),
		newGroupsShowCommand(a),
		newGroupsCreateCommand(a),
		newGroupsDeleteCommand(a),
		newGroupsRunCommand(a),
	)
	return cmd
}

type groupSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"nombre"`
	Members []string `json:"miembros"`
}

func newGroupsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List groups sorted by name",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			groups, err := s.ctl.Groups().List(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.json {
				out := make([]groupSummary, 0, len(groups))
				for _, g := range groups {
					out = append(out, groupSummary{ID: g.ID, Name: g.Name, Members: g.MemberIDs()})
				}
				return a.out.EmitJSON(out)
			}
			if len(groups) == 0 {
				a.out.Info(a.out.Gray("No hay grupos"))
				return nil
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				aliases := make([]string, 0, len(g.Members))
				for _, m := range g.Members {
					aliases = append(aliases, m.Actuator.Alias)
				}
				rows = append(rows, []string{g.Name, g.ID, strconv.Itoa(len(g.Members)), strings.Join(aliases, ", ")})
			}
			return a.out.Table([]string{"NOMBRE", "ID", "LORAS", "MIEMBROS"}, rows)
		},
	}
}

func newGroupsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a group's members with their live state",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), sessionOptions{devices: true})
			if err != nil {
				return err
			}
			defer s.Close()

			g, err := s.ctl.Groups().Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			members := s.ctl.Members(g)
			if a.flags.json {
				return a.out.EmitJSON(map[string]any{"id": g.ID, "nombre": g.Name, "miembros": members})
			}
			a.out.Print(a.out.Bold(g.Name) + a.out.Gray(" "+g.ID))
			return a.deviceTable(members)
		},
	}
}

func newGroupsCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <id|alias>...",
		Short: "Create a group from one or more Loras",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{devices: true})
			if err != nil {
				return err
			}
			defer s.Close()

			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				d, err := s.ctl.Registry().Resolve(ref)
				if err != nil {
					return fmt.Errorf("%w: %q", err, ref)
				}
				ids = append(ids, d.ID)
			}
			g, err := s.ctl.Groups().Create(ctx, args[0], ids)
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(g)
			}
			a.out.Success(fmt.Sprintf("✅ Grupo %s creado con %d Loras", g.Name, len(ids)))
			return nil
		},
	}
}

func newGroupsDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a group",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			g, err := s.ctl.Groups().Find(ctx, args[0])
			if err != nil {
				return err
			}
			ok, err := a.confirm(fmt.Sprintf("¿Eliminar el grupo %s?", g.Name), yes)
			if err != nil {
				return err
			}
			if !ok {
				a.out.Info("Cancelado")
				return nil
			}
			if err := s.ctl.Groups().Delete(ctx, g.ID); err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(map[string]string{"id": g.ID, "estado": "eliminado"})
			}
			a.out.Success(fmt.Sprintf("✅ Grupo %s eliminado", g.Name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newGroupsRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id|name> <encender|apagar|reiniciar>",
		Short: "Send one action to every member of a group",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := lora.ParseAction(args[1])
			if err != nil {
				return UsageError{Msg: err.Error()}
			}
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{devices: true})
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.ctl.RunGroup(ctx, args[0], action)
			if err != nil {
				return err
			}
			if a.flags.json {
				if err := a.out.EmitJSON(res); err != nil {
					return err
				}
			}
			if len(res.Succeeded) == 0 {
				return ErrReported
			}
			return nil
		},
	}
}
