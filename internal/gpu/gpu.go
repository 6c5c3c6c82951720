// Package gpu brings up a headless wgpu compute device: no window, no
// surface, used purely for compute-shader dispatch by the GPU Simulation
// Driver variant.
package gpu

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device wraps the wgpu handles a compute-only driver needs.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

// Open requests a headless high-performance adapter and device, retrying
// transient adapter-acquisition failures (the backend reporting the GPU
// busy or not yet enumerated) with bounded backoff.
func Open(ctx context.Context) (*Device, error) {
	instance := wgpu.CreateInstance(nil)

	var adapter *wgpu.Adapter
	acquire := func() error {
		a, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if err != nil {
			return fmt.Errorf("gpu: request adapter: %w", err)
		}
		adapter = a
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(acquire, policy); err != nil {
		instance.Release()
		return nil, err
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "nebula compute device",
		RequiredFeatures: nil,
		RequiredLimits:   nil,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}

	return &Device{
		Instance: instance,
		Adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
	}, nil
}

// Close releases the device and instance. Per the teardown fix tracked in
// DESIGN.md, this must be called exactly once per Open to avoid leaking
// the backend's device handle.
func (d *Device) Close() {
	if d.Device != nil {
		d.Device.Release()
	}
	if d.Instance != nil {
		d.Instance.Release()
	}
}
