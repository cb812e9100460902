package identity

import (
	"errors"
	"fmt"
	"os"

	"github.com/benmeehan/collar-sync/pkg/file"
)

// Identity is one collar's credentials as listed in the devices seed file.
type Identity struct {
	ID     string `json:"device_id"`
	Name   string `json:"device_name,omitempty"`
	APIKey string `json:"api_key"`
}

// DeviceListInterface loads the collars that may post positions.
type DeviceListInterface interface {
	LoadDevices() ([]Identity, error)
}

// DeviceList reads collar identities from a JSON array file.
type DeviceList struct {
	DevicesFile string
	fileOps     file.FileOperations
}

// NewDeviceList initializes a new DeviceList.
func NewDeviceList(filePath string, fileOps file.FileOperations) DeviceListInterface {
	return &DeviceList{
		DevicesFile: filePath,
		fileOps:     fileOps,
	}
}

// LoadDevices returns the listed identities. A missing file yields no devices.
func (d *DeviceList) LoadDevices() ([]Identity, error) {
	if d.DevicesFile == "" {
		return nil, nil
	}

	var identities []Identity
	if err := d.fileOps.ReadJsonFile(d.DevicesFile, &identities); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read devices file %s: %w", d.DevicesFile, err)
	}

	for i, id := range identities {
		if id.ID == "" || id.APIKey == "" {
			return nil, fmt.Errorf("devices file %s: entry %d needs device_id and api_key", d.DevicesFile, i)
		}
	}
	return identities, nil
}
