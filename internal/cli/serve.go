package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lora-control/internal/api"
	"lora-control/internal/lora"
	"lora-control/internal/storage"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard API with a live push subscription",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !a.client.CheckConnection(ctx) {
				return fmt.Errorf("%w at %s", lora.ErrUnreachable, a.cfg.APIURL)
			}
			s, err := a.open(ctx, sessionOptions{devices: true, push: true})
			if err != nil {
				return err
			}
			defer s.Close()

			stop, err := s.ctl.Start(ctx)
			if err != nil {
				return err
			}
			defer stop()

			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			var history api.History
			if s.journal != nil {
				history = s.journal
			}
			a.out.Info(fmt.Sprintf("Dashboard API en http://%s (%d Loras, push %s)", addr, s.ctl.Registry().Len(), a.cfg.Push.Transport))
			return api.NewRouter(s.ctl, history, a.logger).Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default serve_addr)")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		deviceID string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent actions from the local journal",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.JournalPath == "" {
				a.out.Warn("El registro de acciones está desactivado (journal_path: off)")
				return ErrReported
			}
			j, err := storage.Open(a.cfg.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), deviceID, limit)
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.out.EmitJSON(entries)
			}
			if len(entries) == 0 {
				a.out.Info(a.out.Gray("Sin acciones registradas en " + j.Path()))
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.At.Local().Format("2006-01-02 15:04:05"),
					e.Alias,
					string(e.Action),
					string(e.Status),
					e.Message,
				})
			}
			return a.out.Table([]string{"FECHA", "LORA", "ACCIÓN", "RESULTADO", "MENSAJE"}, rows)
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "Only this device id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries")
	return cmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			if a.flags.json {
				return a.out.EmitJSON(map[string]string{"version": Version})
			}
			fmt.Fprintln(a.stdout, Version)
			return nil
		},
	}
}
