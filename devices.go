package cameracapture

import (
	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/internal/gstreamer"
	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// ListDevices enumerates the video sources GStreamer can see. The slice
// position of each entry is the index Open expects.
func ListDevices() ([]CameraInfo, error) {
	return ListDevicesWith(gstreamer.NewRegistry())
}

// ListDevicesWith enumerates the devices of registry
func ListDevicesWith(registry platform.DeviceRegistry) ([]CameraInfo, error) {
	devices, err := registry.Devices()
	if err != nil {
		return nil, newError(KindDeviceQueryFailed, "list devices", err)
	}

	infos := make([]CameraInfo, len(devices))
	for i, d := range devices {
		infos[i] = CameraInfo{
			DisplayName: d.DisplayName,
			DeviceClass: d.DeviceClass,
			Description: d.Description,
			Index:       i,
		}
	}
	return infos, nil
}
