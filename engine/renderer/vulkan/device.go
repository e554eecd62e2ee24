package vulkan

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/metronome/engine/core"
)

type Config struct {
	ApplicationName string
	// Extensions required by the window system, see
	// platform.Platform.RequiredInstanceExtensions.
	Extensions []string
	// Minimized is polled by BeginDraw. May be nil.
	Minimized func() bool
	Debug     bool
}

// Device is a Vulkan instance with one logical device and its graphics
// queue. Frames are paced by the caller; the device only brackets them.
type Device struct {
	mu sync.Mutex

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	graphicsQueue  vk.Queue
	graphicsFamily uint32
	deviceName     string

	minimized func() bool
	destroyed bool

	FrameNumber uint64
}

// NewDevice loads the Vulkan loader through GLFW and creates the device.
// GLFW must already be initialised.
func NewDevice(cfg Config) (*Device, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("%w: GetInstanceProcAddress is nil", core.ErrNativeInitialization)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("%w: vk init: %v", core.ErrNativeInitialization, err)
	}

	d := &Device{minimized: cfg.Minimized}
	if err := d.createInstance(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNativeInitialization, err)
	}
	if err := d.selectPhysicalDevice(); err != nil {
		vk.DestroyInstance(d.instance, nil)
		return nil, fmt.Errorf("%w: %v", core.ErrNativeInitialization, err)
	}
	if err := d.createLogicalDevice(); err != nil {
		vk.DestroyInstance(d.instance, nil)
		return nil, fmt.Errorf("%w: %v", core.ErrNativeInitialization, err)
	}
	core.LogInfo("vulkan device `%s` ready", d.deviceName)
	return d, nil
}

func (d *Device) createInstance(cfg Config) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(cfg.ApplicationName),
		PEngineName:        safeString("Metronome"),
	}

	extensions := append([]string{}, cfg.Extensions...)
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		flags |= 1
	}
	var layers []string
	if cfg.Debug {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		if !layersAvailable(layers) {
			core.LogWarn("validation layers requested but not installed")
			layers = nil
		}
	}
	for _, e := range extensions {
		core.LogDebug("required extension: %s", e)
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		Flags:                   flags,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}
	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &d.instance)); err != nil {
		return err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		vk.DestroyInstance(d.instance, nil)
		return err
	}
	core.LogDebug("vulkan instance created")
	return nil
}

func layersAvailable(required []string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if cString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.instance, &count, devices)); err != nil {
		return err
	}

	for _, device := range devices {
		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)
		for i := range families {
			families[i].Deref()
		}

		family, ok := graphicsQueueFamily(families)
		if !ok {
			continue
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &properties)
		properties.Deref()

		d.physicalDevice = device
		d.graphicsFamily = family
		d.deviceName = cString(properties.DeviceName[:])
		core.LogInfo("selected device `%s` (%s)", d.deviceName, deviceTypeString(properties.DeviceType))
		return nil
	}
	return fmt.Errorf("no physical device with a graphics queue")
}

// graphicsQueueFamily returns the first queue family supporting graphics.
func graphicsQueueFamily(families []vk.QueueFamilyProperties) (uint32, bool) {
	for i, f := range families {
		if f.QueueCount > 0 && vk.QueueFlagBits(f.QueueFlags)&vk.QueueGraphicsBit != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceTypeString(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

func (d *Device) createLogicalDevice() error {
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.graphicsFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	createInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}
	if err := resultError("vkCreateDevice", vk.CreateDevice(d.physicalDevice, &createInfo, nil, &d.logicalDevice)); err != nil {
		return err
	}
	vk.GetDeviceQueue(d.logicalDevice, d.graphicsFamily, 0, &d.graphicsQueue)
	return nil
}

func (d *Device) BeginDraw() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return false
	}
	if d.minimized != nil && d.minimized() {
		return false
	}
	return true
}

// EndDraw waits for the graphics queue to drain.
func (d *Device) EndDraw() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return core.ErrObjectDisposed
	}
	return resultError("vkQueueWaitIdle", vk.QueueWaitIdle(d.graphicsQueue))
}

func (d *Device) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return core.ErrObjectDisposed
	}
	d.FrameNumber++
	return nil
}

func (d *Device) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil
	}
	d.destroyed = true

	if d.logicalDevice != nil {
		vk.DeviceWaitIdle(d.logicalDevice)
		vk.DestroyDevice(d.logicalDevice, nil)
		d.logicalDevice = nil
	}
	d.graphicsQueue = nil
	d.physicalDevice = nil
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
	core.LogDebug("vulkan device destroyed")
	return nil
}
