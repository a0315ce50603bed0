package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lora-control/internal/controller"
	"lora-control/internal/dispatch"
	"lora-control/internal/lora"
	"lora-control/internal/pending"
	"lora-control/internal/view"
)

type filterFlags struct {
	alias   string
	state   string
	gateway string
	motor   string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.alias, "alias", "a", "", "Case-insensitive alias substring")
	fs.StringVar(&f.state, "state", "", "Connection state: online, offline")
	fs.StringVar(&f.gateway, "gateway", "", "Gateway state: ok, caido, reiniciando")
	fs.StringVar(&f.motor, "motor", "", "Motor: on, off, any")
}

func (f filterFlags) criteria() (view.Criteria, error) {
	state, err := view.ParseState(f.state)
	if err != nil {
		return view.Criteria{}, UsageError{Msg: err.Error()}
	}
	gw, err := view.ParseGateway(f.gateway)
	if err != nil {
		return view.Criteria{}, UsageError{Msg: err.Error()}
	}
	motor, err := view.ParseMotor(f.motor)
	if err != nil {
		return view.Criteria{}, UsageError{Msg: err.Error()}
	}
	return view.Criteria{Alias: f.alias, State: state, Gateway: gw, Motor: motor}, nil
}

var deviceHeader = []string{"ALIAS", "ID", "ESTADO", "MOTOR", "GATEWAY", "IP", "PENDIENTE"}

func motorLabel(on bool) string {
	if on {
		return "encendido"
	}
	return "apagado"
}

func (a *app) deviceRow(d controller.DeviceView) []string {
	state := string(d.State)
	switch d.State {
	case lora.StateOnline:
		state = a.out.Green(state)
	case lora.StateOffline:
		state = a.out.Red(state)
	}
	gw := d.GatewayStatus()
	gwLabel := string(gw)
	switch gw {
	case lora.GatewayDown:
		gwLabel = a.out.Red(gwLabel)
	case lora.GatewayRestarting:
		gwLabel = a.out.Yellow(gwLabel)
	}
	pendingLabel := "-"
	if d.Pending != "" {
		pendingLabel = a.out.Yellow(string(d.Pending) + "…")
	}
	return []string{d.Alias, d.ID, state, motorLabel(d.MotorOn), gwLabel, d.IP, pendingLabel}
}

func (a *app) deviceTable(devices []controller.DeviceView) error {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, a.deviceRow(d))
	}
	return a.out.Table(deviceHeader, rows)
}

func newDevicesCommand(a *app) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"ls"},
		Short:   "List Loras, filtered and sorted by alias",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context(), sessionOptions{devices: true})
			if err != nil {
				return err
			}
			defer s.Close()

			devices := s.ctl.View(criteria)
			if a.flags.json {
				return a.out.EmitJSON(devices)
			}
			if len(devices) == 0 {
				a.out.Info(a.out.Gray("No hay Loras que coincidan con los filtros"))
				return nil
			}
			return a.deviceTable(devices)
		},
	}
	filters.register(cmd.Flags())
	return cmd
}

func (a *app) printCard(d controller.DeviceView) {
	gw := d.GatewayStatus()
	gwDetail := string(gw)
	if d.Gateway.Alias != "" || d.Gateway.IP != "" {
		gwDetail = fmt.Sprintf("%s (%s %s)", gw, d.Gateway.Alias, d.Gateway.IP)
	}
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	a.out.Print(a.out.Bold(d.Alias) + a.out.Gray(" "+d.ID))
	a.out.Print("  Estado:     " + string(d.State))
	a.out.Print("  Motor:      " + motorLabel(d.MotorOn))
	a.out.Print("  Gateway:    " + gwDetail)
	a.out.Print(fmt.Sprintf("  Relés:      motor1=%s motor2=%s gateway=%s válvula=%s",
		onOff(d.Relays.Motor1), onOff(d.Relays.Motor2), onOff(d.Relays.Gateway), onOff(d.Relays.Valve)))
	if d.IP != "" {
		a.out.Print("  IP:         " + d.IP)
	}
	if d.Latitude != 0 || d.Longitude != 0 {
		a.out.Print(fmt.Sprintf("  Ubicación:  %.6f, %.6f", d.Latitude, d.Longitude))
	}
	if d.Pending != "" {
		a.out.Print("  Pendiente:  " + a.out.Yellow(string(d.Pending)))
	}
}

func (a *app) showDevice(d controller.DeviceView) error {
	if a.flags.json {
		return a.out.EmitJSON(d)
	}
	a.printCard(d)
	return nil
}

func newDeviceCommand(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "device <id|alias>",
		Short: "Show one Lora in detail",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{devices: true, push: follow})
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.ctl.Device(args[0])
			if err != nil {
				return err
			}
			if err := a.showDevice(d); err != nil || !follow {
				return err
			}

			reg := s.ctl.Registry()
			reg.Select(d.ID)
			s.ctl.OnChange(func(updated []lora.Actuator) {
				sel, ok := reg.Selected()
				if !ok {
					return
				}
				for _, u := range updated {
					if u.ID == sel.ID {
						if !a.flags.json {
							a.out.Print("")
						}
						fresh, err := s.ctl.Device(sel.ID)
						if err == nil {
							_ = a.showDevice(fresh)
						}
						return
					}
				}
			})
			stop, err := s.ctl.Start(ctx)
			if err != nil {
				return err
			}
			defer stop()
			<-ctx.Done()
			return nil
		},
		ValidArgsFunction: a.completeDeviceRefs,
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep the card updated from the push channel")
	return cmd
}

func newActionCommand(a *app, use string, action lora.Action, short string) *cobra.Command {
	var (
		wait        bool
		waitTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   use + " <id|alias>",
		Short: short,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.act(cmd.Context(), args[0], action, wait, waitTimeout)
		},
		ValidArgsFunction: a.completeDeviceRefs,
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the push channel confirms the new state")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "How long --wait waits (default pending_ttl)")
	return cmd
}

type actResult struct {
	dispatch.Outcome
	Confirmed *bool                  `json:"confirmado,omitempty"`
	Device    *controller.DeviceView `json:"actuador,omitempty"`
}

func (a *app) act(ctx context.Context, ref string, action lora.Action, wait bool, waitTimeout time.Duration) error {
	s, err := a.open(ctx, sessionOptions{devices: true, push: wait})
	if err != nil {
		return err
	}
	defer s.Close()

	if wait {
		stop, err := s.ctl.Start(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	o, err := s.ctl.Act(ctx, ref, action)
	if err != nil {
		return err
	}
	res := actResult{Outcome: o}
	if !o.OK() {
		if a.flags.json {
			_ = a.out.EmitJSON(res)
		}
		return ErrReported
	}
	if wait {
		confirmed := a.waitConfirmed(ctx, s.ctl, o, waitTimeout)
		res.Confirmed = &confirmed
		if d, err := s.ctl.Device(o.ID); err == nil {
			res.Device = &d
		}
		if !confirmed {
			if a.flags.json {
				_ = a.out.EmitJSON(res)
			}
			return ErrReported
		}
	}
	if a.flags.json {
		return a.out.EmitJSON(res)
	}
	return nil
}

// waitConfirmed blocks until the pending entry for o clears and reports
// whether the device now shows the requested state.
func (a *app) waitConfirmed(ctx context.Context, ctl *controller.Controller, o dispatch.Outcome, timeout time.Duration) bool {
	explicit := timeout > 0
	if !explicit {
		timeout = a.cfg.PendingTTL + time.Second
		if a.cfg.PendingTTL <= 0 {
			timeout = 2 * time.Minute
		}
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ctl.WaitSettled(waitCtx, o.ID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.out.Warn(fmt.Sprintf("⚠️ %s no confirmó %s tras %s", o.Alias, o.Action, timeout))
		}
		return false
	}
	d, err := ctl.Device(o.ID)
	if err != nil || !pending.Satisfied(o.Action, d.Actuator) {
		return false
	}
	a.out.Info(a.out.Gray(fmt.Sprintf("%s confirmado: motor %s, gateway %s", d.Alias, motorLabel(d.MotorOn), d.GatewayStatus())))
	return true
}

func newWatchCommand(a *app) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live Lora updates from the push channel",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.open(ctx, sessionOptions{devices: true, push: true})
			if err != nil {
				return err
			}
			defer s.Close()

			if a.flags.json {
				_ = a.out.EmitJSON(s.ctl.View(criteria))
			} else if err := a.deviceTable(s.ctl.View(criteria)); err != nil {
				return err
			}

			s.ctl.OnChange(func(updated []lora.Actuator) {
				changed := s.ctl.Projector().Project(updated, criteria)
				if len(changed) == 0 {
					return
				}
				views := make([]controller.DeviceView, 0, len(changed))
				for _, d := range changed {
					if v, err := s.ctl.Device(d.ID); err == nil {
						views = append(views, v)
					}
				}
				if a.flags.json {
					_ = a.out.EmitJSON(views)
					return
				}
				stamp := a.now().Format("15:04:05")
				for _, v := range views {
					a.out.Print(a.out.Gray(stamp) + "  " + strings.Join(a.deviceRow(v), "  "))
				}
			})

			stop, err := s.ctl.Start(ctx)
			if err != nil {
				return err
			}
			defer stop()
			a.out.Info(a.out.Gray("Escuchando actualizaciones (Ctrl-C para salir)"))
			<-ctx.Done()
			return nil
		},
	}
	filters.register(cmd.Flags())
	return cmd
}

func newMapCommand(a *app) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Print Lora locations as a GeoJSON FeatureCollection",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context(), sessionOptions{devices: true})
			if err != nil {
				return err
			}
			defer s.Close()
			devices := s.ctl.Projector().Project(s.ctl.Registry().All(), criteria)
			return a.out.EmitJSON(view.Markers(devices))
		},
	}
	filters.register(cmd.Flags())
	return cmd
}
