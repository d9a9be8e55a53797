package syncsvc

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vitalsync/vitalsync/internal/health"
	"github.com/vitalsync/vitalsync/internal/syncmsg"
)

// progressBatchDays is how many days of an all-time transfer are processed
// between progress messages.
const progressBatchDays = 30

// RecordSource is the source device's authoritative health history.
type RecordSource interface {
	Records(dates []time.Time) ([]health.DailyRecord, error)
	AllRecords() ([]health.DailyRecord, error)
}

// sourceServer answers sink requests from the local record source.
type sourceServer struct {
	svc        *Service
	src        RecordSource
	deviceName string
	busy       atomic.Bool
}

// ServeSource wires the source-role request handler: RequestData and
// RequestAllData are served from src, one request at a time.
func (s *Service) ServeSource(deviceName string, src RecordSource) {
	srv := &sourceServer{svc: s, src: src, deviceName: deviceName}
	s.OnMessage(srv.handle)
}

// handle runs on the service event loop; serving is spawned off it so a
// long transfer never stalls inbound keep-alives.
func (srv *sourceServer) handle(msg *syncmsg.Message) {
	switch data := msg.Data.(type) {
	case syncmsg.RequestData:
		if !srv.busy.CompareAndSwap(false, true) {
			slog.Warn("sync serve busy, dropping request", "type", msg.Type)
			return
		}
		go srv.serveDates(data.Dates)

	case syncmsg.RequestAllData:
		if !srv.busy.CompareAndSwap(false, true) {
			slog.Warn("sync serve busy, dropping request", "type", msg.Type)
			return
		}
		go srv.serveAll()

	default:
		slog.Debug("sync serve ignoring message", "type", msg.Type)
	}
}

func (srv *sourceServer) serveDates(dates []time.Time) {
	defer srv.busy.Store(false)
	srv.svc.SetSyncing(true)
	defer srv.svc.SetSyncing(false)

	slog.Info("sync serving dates", "count", len(dates))
	records, err := srv.src.Records(dates)
	if err != nil {
		srv.svc.recordError(fmt.Errorf("fetch records: %w", err))
		slog.Error("sync serve fetch", "error", err)
		return
	}

	srv.sendPayload(records)
}

func (srv *sourceServer) serveAll() {
	defer srv.busy.Store(false)
	srv.svc.SetSyncing(true)
	defer srv.svc.SetSyncing(false)

	records, err := srv.src.AllRecords()
	if err != nil {
		srv.svc.recordError(fmt.Errorf("fetch all records: %w", err))
		slog.Error("sync serve fetch all", "error", err)
		return
	}

	total := len(records)
	slog.Info("sync serving all data", "days", total)

	// Progress messages let the sink render movement before the single
	// final payload lands.
	for processed := 0; processed < total; processed += progressBatchDays {
		batch := progressBatchDays
		if processed+batch > total {
			batch = total - processed
		}
		info := syncmsg.SyncProgressInfo{
			TotalDays:      total,
			ProcessedDays:  processed + batch,
			RecordsInBatch: batch,
			Message:        fmt.Sprintf("processed %d of %d days", processed+batch, total),
		}
		if err := srv.svc.Send(syncmsg.NewSyncProgress(info)); err != nil {
			srv.svc.recordError(err)
			return
		}
	}

	if err := srv.svc.Send(syncmsg.NewSyncProgress(syncmsg.SyncProgressInfo{
		TotalDays:     total,
		ProcessedDays: total,
		IsComplete:    true,
	})); err != nil {
		srv.svc.recordError(err)
		return
	}

	srv.sendPayload(records)
}

func (srv *sourceServer) sendPayload(records []health.DailyRecord) {
	payload := syncmsg.SyncPayload{
		DeviceName:    srv.deviceName,
		SyncTimestamp: time.Now(),
		HealthRecords: records,
	}
	if err := srv.svc.Send(syncmsg.NewHealthData(payload)); err != nil {
		srv.svc.recordError(err)
		slog.Error("sync serve send", "error", err)
		return
	}
	slog.Info("sync served payload", "records", len(records))
}
