package config

import (
	"io"
	"strings"
)

// Core holds [core] section keys (spec.md §6).
type Core struct {
	VWidth, VHeight  int
	Plugins          []string
	PluginPathPrefix string
	ShaderSrc        string
	CloseTopView     string // activator string, resolved lazily by the registry
}

// Input holds [input] section keys.
type Input struct {
	TapToClick         bool
	DisableWhileTyping bool
	NaturalScroll      bool
	XkbModel           string
	XkbLayout          string
	XkbVariant         string
	XkbOptions         string
	XkbRules           string
	KbRepeatRate       int
	KbRepeatDelay      int
	DrmDevice          string
}

// Workarounds holds [workarounds] section keys.
type Workarounds struct {
	EnableSoUnloading bool
}

// Output holds a [<output-name>] section.
type Output struct {
	Name      string
	Mode      string // "default" | "auto" | "off" | "mirror <src>" | "WxH[@R]" | "custom_mode <modeline>"
	Position  string // "x,y" | "x@y" | "default"
	Scale     float64
	Transform string
}

// Config is the typed view of a parsed kestrel.ini, plus the raw
// document so the registry can hand plugin-specific sections to
// loaded plugins without the core having to know every plugin's keys.
type Config struct {
	Core        Core
	Input       Input
	Workarounds Workarounds
	Outputs     map[string]Output
	// InputDevices holds [input-device:<name>] overrides verbatim;
	// per-device keys are plugin/back-end specific.
	InputDevices map[string]map[string]string

	Raw *Raw
}

const defaultVWidth, defaultVHeight = 3, 3

// Load parses r into a typed Config, applying spec.md §6's defaults
// for any key absent from its section.
func Load(r io.Reader) (*Config, error) {
	raw, err := ParseINI(r)
	if err != nil {
		return nil, err
	}
	return FromRaw(raw), nil
}

// FromRaw builds a typed Config from an already-parsed Raw document.
func FromRaw(raw *Raw) *Config {
	cfg := &Config{
		Raw:          raw,
		Outputs:      make(map[string]Output),
		InputDevices: make(map[string]map[string]string),
	}

	cfg.Core = Core{
		VWidth:           raw.integer("core", "vwidth", defaultVWidth),
		VHeight:          raw.integer("core", "vheight", defaultVHeight),
		Plugins:          splitFields(raw.str("core", "plugins", "")),
		PluginPathPrefix: raw.str("core", "plugin_path_prefix", ""),
		ShaderSrc:        raw.str("core", "shadersrc", ""),
		CloseTopView:     raw.str("core", "close_top_view", ""),
	}

	cfg.Input = Input{
		TapToClick:         raw.boolean("input", "tap_to_click", false),
		DisableWhileTyping: raw.boolean("input", "disable_while_typing", false),
		NaturalScroll:      raw.boolean("input", "natural_scroll", false),
		XkbModel:           raw.str("input", "xkb_model", ""),
		XkbLayout:          raw.str("input", "xkb_layout", ""),
		XkbVariant:         raw.str("input", "xkb_variant", ""),
		XkbOptions:         raw.str("input", "xkb_options", ""),
		XkbRules:           raw.str("input", "xkb_rules", ""),
		KbRepeatRate:       raw.integer("input", "kb_repeat_rate", 40),
		KbRepeatDelay:      raw.integer("input", "kb_repeat_delay", 400),
		DrmDevice:          raw.str("input", "drm_device", ""),
	}

	cfg.Workarounds = Workarounds{
		EnableSoUnloading: raw.boolean("workarounds", "enable_so_unloading", false),
	}

	reserved := map[string]bool{"core": true, "input": true, "workarounds": true}
	for _, name := range raw.Sections() {
		if reserved[name] {
			continue
		}
		if devName, ok := strings.CutPrefix(name, "input-device:"); ok {
			m := make(map[string]string)
			for k, v := range raw.Section(name) {
				m[k] = v
			}
			cfg.InputDevices[devName] = m
			continue
		}
		cfg.Outputs[name] = Output{
			Name:      name,
			Mode:      raw.str(name, "mode", "default"),
			Position:  raw.str(name, "position", "default"),
			Scale:     raw.float(name, "scale", 1.0),
			Transform: raw.str(name, "transform", "normal"),
		}
	}
	return cfg
}

func splitFields(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
