package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/viper"

	"github.com/vitalsync/vitalsync/internal/cache"
	"github.com/vitalsync/vitalsync/internal/syncmsg"
)

// appIdentity is the stable device identity announced to peers.
type appIdentity struct {
	DeviceID   string
	DeviceName string
}

func resolveIdentity() (appIdentity, error) {
	id, err := machineid.ProtectedID("vitalsync")
	if err != nil {
		return appIdentity{}, fmt.Errorf("resolve device id: %w", err)
	}
	// Peer lists key on the short form; the full hash is longer than any
	// TXT record needs.
	if len(id) > 16 {
		id = id[:16]
	}

	name := viper.GetString("device_name")
	if name == "" {
		name, err = os.Hostname()
		if err != nil {
			name = "vitalsync-device"
		}
	}
	return appIdentity{DeviceID: id, DeviceName: name}, nil
}

func appDir() string {
	if dir := viper.GetString("app_dir"); dir != "" {
		return dir
	}
	return defaultAppDir
}

func openStore() (*cache.Store, error) {
	db, err := cache.NewSqliteDB(cache.WithPath(filepath.Join(appDir(), "cache.db")))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return cache.NewStore(db)
}

func schedulePath() string {
	return filepath.Join(appDir(), "schedule.json")
}

// wireEncoding resolves the configured wire encoding for sync sessions.
func wireEncoding() syncmsg.Encoding {
	return syncmsg.PreferredEncoding(viper.GetString("encoding"))
}
