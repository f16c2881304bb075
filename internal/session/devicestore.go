package session

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const deviceFile = "device.json"

type deviceState struct {
	UserID string `json:"userId"`
}

// DeviceStore persists the resolved user ID across launches, one JSON
// file per device state directory.
type DeviceStore struct {
	dir string
}

func NewDeviceStore(dir string) *DeviceStore {
	return &DeviceStore{dir: dir}
}

// LoadUserID returns the persisted ID, or "" when nothing usable is on
// disk. Corrupt or missing state is treated as absent.
func (d *DeviceStore) LoadUserID() string {
	b, err := os.ReadFile(filepath.Join(d.dir, deviceFile))
	if err != nil {
		return ""
	}
	var st deviceState
	if err := json.Unmarshal(b, &st); err != nil {
		return ""
	}
	return st.UserID
}

func (d *DeviceStore) SaveUserID(id string) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return err
	}
	b, err := json.Marshal(deviceState{UserID: id})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dir, deviceFile), b, 0644)
}
