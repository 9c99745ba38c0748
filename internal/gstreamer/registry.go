package gstreamer

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

const (
	videoSourceClass = "Video/Source"
	rawVideoCaps     = "video/x-raw"
)

// Registry enumerates video sources through a GStreamer DeviceMonitor
type Registry struct{}

// NewRegistry returns a registry backed by the host's device providers
func NewRegistry() *Registry {
	return &Registry{}
}

// Devices starts a monitor filtered to Video/Source, snapshots every device
// and its caps, and stops the monitor again. Device order is the monitor's
// enumeration order.
func (r *Registry) Devices() ([]platform.Device, error) {
	if _, err := NewEngine(); err != nil {
		return nil, err
	}

	monitor := gst.NewDeviceMonitor()
	if monitor == nil {
		return nil, fmt.Errorf("failed to create device monitor")
	}
	monitor.AddFilter(videoSourceClass, gst.NewCapsFromString(rawVideoCaps))
	// compressed sources advertise image/jpeg without any raw caps
	monitor.AddFilter(videoSourceClass, gst.NewCapsFromString("image/jpeg"))

	if !monitor.Start() {
		return nil, fmt.Errorf("failed to start device monitor")
	}
	defer monitor.Stop()

	gstDevices := monitor.GetDevices()
	devices := make([]platform.Device, 0, len(gstDevices))
	for _, d := range gstDevices {
		name, class := d.GetDisplayName(), d.GetDeviceClass()
		devices = append(devices, platform.Device{
			DisplayName:  name,
			DeviceClass:  class,
			Description:  fmt.Sprintf("%s (%s)", name, class),
			Capabilities: capabilityRecords(d.GetCaps()),
		})
	}

	slog.Debug("gstreamer: devices enumerated", "count", len(devices))
	return devices, nil
}

// capabilityRecords serializes every caps structure into a record
func capabilityRecords(caps *gst.Caps) []platform.CapabilityRecord {
	if caps == nil {
		return nil
	}
	records := make([]platform.CapabilityRecord, 0, caps.GetSize())
	for i := 0; i < caps.GetSize(); i++ {
		st := caps.GetStructureAt(i)
		if st == nil {
			continue
		}
		records = append(records, recordFromStructure(st.String()))
	}
	return records
}

func recordFromStructure(s string) platform.CapabilityRecord {
	name, fields := parseStructure(s)
	return platform.CapabilityRecord{MediaType: name, Fields: fields}
}
