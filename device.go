package rthist

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend for SystemDevice.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device is an open GPU device and its submission queue.
type Device struct {
	HAL   hal.Device
	Queue hal.Queue

	// Name identifies the adapter in logs.
	Name string
}

// DeviceResolver supplies the GPU device a Bridge works on. A Bridge calls
// ResolveDevice on its first ComputeHistogram and keeps the result; a
// failed resolution is retried on the next call.
type DeviceResolver interface {
	ResolveDevice() (*Device, error)
}

// ResolverFunc adapts an ordinary function to the DeviceResolver interface.
type ResolverFunc func() (*Device, error)

// ResolveDevice calls f.
func (f ResolverFunc) ResolveDevice() (*Device, error) { return f() }

// FromHAL returns a resolver for an already open HAL device. The caller
// keeps ownership of the device.
func FromHAL(device hal.Device, queue hal.Queue, name string) DeviceResolver {
	return ResolverFunc(func() (*Device, error) {
		if device == nil || queue == nil {
			return nil, fmt.Errorf("rthist: nil HAL device or queue")
		}
		return &Device{HAL: device, Queue: queue, Name: name}, nil
	})
}

// FromProvider returns a resolver that shares the device of a host
// application such as gogpu. The provider must also implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
// The host keeps ownership of the device.
func FromProvider(provider gpucontext.DeviceProvider) DeviceResolver {
	return ResolverFunc(func() (*Device, error) {
		type halProvider interface {
			HalDevice() any
			HalQueue() any
		}
		hp, ok := provider.(halProvider)
		if !ok {
			return nil, fmt.Errorf("rthist: provider does not expose HAL types")
		}
		device, ok := hp.HalDevice().(hal.Device)
		if !ok || device == nil {
			return nil, fmt.Errorf("rthist: provider HalDevice is not hal.Device")
		}
		queue, ok := hp.HalQueue().(hal.Queue)
		if !ok || queue == nil {
			return nil, fmt.Errorf("rthist: provider HalQueue is not hal.Queue")
		}
		name := provider.AdapterInfo().Name
		if name == "" {
			name = "provider"
		}
		return &Device{HAL: device, Queue: queue, Name: name}, nil
	})
}

// systemDevice is the process-wide device opened by SystemDevice. It lives
// until the process exits.
var systemDevice struct {
	mu       sync.Mutex
	instance hal.Instance
	dev      *Device
}

// SystemDevice opens the process-wide Vulkan device on first use and
// returns it on every later call. A failed open is not cached.
func SystemDevice() (*Device, error) {
	systemDevice.mu.Lock()
	defer systemDevice.mu.Unlock()

	if systemDevice.dev != nil {
		return systemDevice.dev, nil
	}

	instance, adapters, err := enumerate()
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("rthist: no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("rthist: open device: %w", err)
	}

	systemDevice.instance = instance
	systemDevice.dev = &Device{HAL: openDev.Device, Queue: openDev.Queue, Name: selected.Info.Name}
	Logger().Info("system GPU device opened", "adapter", selected.Info.Name)
	return systemDevice.dev, nil
}

// SystemResolver resolves to SystemDevice. New uses it when given a nil
// resolver.
var SystemResolver DeviceResolver = ResolverFunc(SystemDevice)

// AdapterInfo describes a GPU adapter.
type AdapterInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Adapters lists the Vulkan adapters visible to the process.
func Adapters() ([]AdapterInfo, error) {
	instance, adapters, err := enumerate()
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()

	out := make([]AdapterInfo, 0, len(adapters))
	for i := range adapters {
		kind := "other"
		switch adapters[i].Info.DeviceType {
		case gputypes.DeviceTypeDiscreteGPU:
			kind = "discrete"
		case gputypes.DeviceTypeIntegratedGPU:
			kind = "integrated"
		}
		out = append(out, AdapterInfo{Name: adapters[i].Info.Name, Type: kind})
	}
	return out, nil
}

func enumerate() (hal.Instance, []hal.ExposedAdapter, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, fmt.Errorf("rthist: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, fmt.Errorf("rthist: create instance: %w", err)
	}
	return instance, instance.EnumerateAdapters(nil), nil
}
