package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/vitalsync/vitalsync/internal/cache"
	"github.com/vitalsync/vitalsync/internal/export"
	"github.com/vitalsync/vitalsync/internal/schedule"
	"github.com/vitalsync/vitalsync/internal/syncmsg"
	"github.com/vitalsync/vitalsync/internal/syncsvc"
	"github.com/vitalsync/vitalsync/internal/transport"
)

func init() {
	rootCmd.AddCommand(newSinkCmd())
}

func newSinkCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "sink",
		Short: "Discover a source device, pull its health data and run scheduled exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			showHeader()

			ident, err := resolveIdentity()
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}

			mgr, err := schedule.NewManager(schedule.Config{
				Store:       schedule.NewStore(schedulePath()),
				Fetch:       store,
				Write:       export.FileWriter{Format: viper.GetString("format")},
				History:     store,
				Notifier:    schedule.DesktopNotifier{},
				Destination: viper.GetString("destination"),
			})
			if err != nil {
				return err
			}

			tr := transport.New(transport.Config{
				Role:       transport.RoleSink,
				DeviceID:   ident.DeviceID,
				DeviceName: ident.DeviceName,
			})
			svc := syncsvc.New(tr, syncsvc.Config{
				Role:     transport.RoleSink,
				Encoding: wireEncoding(),
			})

			sink := &sinkApp{svc: svc, store: store, days: days}
			svc.OnMessage(sink.onMessage)
			svc.OnStateChange(sink.onStateChange)

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				svc.Start(gctx)
				defer svc.Stop()
				if err := svc.StartBrowsing(gctx); err != nil {
					return err
				}
				defer svc.StopBrowsing()
				<-gctx.Done()
				return nil
			})
			g.Go(func() error {
				mgr.Start()
				defer mgr.Stop()
				<-gctx.Done()
				return nil
			})

			slog.Info("sink ready", "device", ident.DeviceName)
			err = g.Wait()
			slog.Info("sink shutting down")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Request only the last N days on connect (0 requests everything)")
	return cmd
}

// sinkApp caches incoming payloads and requests data whenever a source
// connects.
type sinkApp struct {
	svc   *syncsvc.Service
	store *cache.Store
	days  int
}

func (a *sinkApp) onStateChange(state transport.State) {
	if state != transport.StateConnected {
		return
	}
	var msg *syncmsg.Message
	if a.days > 0 {
		dates := make([]time.Time, 0, a.days)
		day := time.Now().AddDate(0, 0, -a.days)
		for i := 0; i < a.days; i++ {
			day = day.AddDate(0, 0, 1)
			dates = append(dates, day)
		}
		msg = syncmsg.NewRequestData(dates)
	} else {
		msg = syncmsg.NewRequestAllData()
	}
	if err := a.svc.Send(msg); err != nil {
		slog.Error("sync request failed", "error", err)
	}
}

func (a *sinkApp) onMessage(msg *syncmsg.Message) {
	switch data := msg.Data.(type) {
	case syncmsg.HealthData:
		records := data.Payload.HealthRecords
		if err := a.store.UpsertRecords(context.Background(), records, data.Payload.DeviceName); err != nil {
			slog.Error("cache update failed", "error", err)
			return
		}
		slog.Info("sync received data",
			"device", data.Payload.DeviceName,
			"records", len(records))

	case syncmsg.SyncProgress:
		slog.Info("sync progress",
			"done", data.Info.ProcessedDays,
			"total", data.Info.TotalDays,
			"pct", int(data.Info.FractionComplete()*100))

	default:
		slog.Debug("sink ignoring message", "type", msg.Type)
	}
}
