package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vitalsync/vitalsync/internal/cache"
	"github.com/vitalsync/vitalsync/internal/health"
	"github.com/vitalsync/vitalsync/internal/syncsvc"
	"github.com/vitalsync/vitalsync/internal/transport"
)

func init() {
	rootCmd.AddCommand(newSourceCmd())
}

func newSourceCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "source",
		Short: "Advertise this device and serve its health history to sinks",
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

			if port == 0 {
				port = viper.GetInt("port")
			}
			tr := transport.New(transport.Config{
				Role:       transport.RoleSource,
				DeviceID:   ident.DeviceID,
				DeviceName: ident.DeviceName,
				Port:       port,
			})
			svc := syncsvc.New(tr, syncsvc.Config{
				Role:     transport.RoleSource,
				Encoding: wireEncoding(),
			})
			svc.ServeSource(ident.DeviceName, &storeSource{store: store})

			svc.Start(cmd.Context())
			defer svc.Stop()
			if err := svc.StartAdvertising(); err != nil {
				return err
			}
			defer svc.StopAdvertising()

			slog.Info("source ready", "device", ident.DeviceName, "port", port)
			<-cmd.Context().Done()
			slog.Info("source shutting down")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on")
	return cmd
}

// storeSource serves sync requests from the local cache.
type storeSource struct {
	store *cache.Store
}

func (s *storeSource) Records(dates []time.Time) ([]health.DailyRecord, error) {
	ctx := context.Background()
	records := make([]health.DailyRecord, 0, len(dates))
	for _, date := range dates {
		rec, err := s.store.Record(ctx, date)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (s *storeSource) AllRecords() ([]health.DailyRecord, error) {
	return s.store.AllRecords(context.Background())
}

var _ syncsvc.RecordSource = (*storeSource)(nil)
