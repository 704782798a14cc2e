package playback

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// Device is one playback endpoint reported by the audio backend.
type Device struct {
	Name      string
	IsDefault bool
}

// ListDevices enumerates playback devices known to the audio backend.
func ListDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}

	return devices, nil
}
