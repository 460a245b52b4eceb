package camera

import (
	"sort"
	"time"
)

// Preset names.
const (
	PresetQuick  = "quick"
	PresetSteady = "steady"
	PresetLowRes = "lowres"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetQuick:  QuickConfig(),
		PresetSteady: SteadyConfig(),
		PresetLowRes: LowResConfig(),
	}
}

// PresetNames returns the sorted preset names.
func PresetNames() []string {
	names := make([]string, 0, 3)
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset by name, or nil if unknown.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// QuickConfig waits 300ms for exposure to settle.
func QuickConfig() Config {
	return Config{
		Width:        640,
		Height:       480,
		Quality:      95,
		SettleDelay:  300 * time.Millisecond,
		ReadyTimeout: 5 * time.Second,
	}
}

// SteadyConfig waits 10s for exposure to settle. Slower, but frames from
// cameras with sluggish auto-exposure come out usable.
func SteadyConfig() Config {
	cfg := QuickConfig()
	cfg.SettleDelay = 10 * time.Second
	cfg.ReadyTimeout = 15 * time.Second
	return cfg
}

// LowResConfig trades detail for upload size.
func LowResConfig() Config {
	cfg := QuickConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Quality = 85
	return cfg
}
