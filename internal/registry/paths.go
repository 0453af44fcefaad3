package registry

import (
	"os"
	"strings"
)

// fileExists reports whether path names a regular, readable file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// PluginPaths builds the plugin search-path list per spec.md §6:
// WAYFIRE_PLUGIN_PATH (colon-separated) first, then
// $XDG_DATA_HOME/wayfire/plugins (or $HOME/.local/share as the
// XDG_DATA_HOME fallback), then the config file's own
// plugin_path_prefix, grounded on plugin-loader.cpp's
// get_plugin_paths().
func PluginPaths(configPrefix string) []string {
	var paths []string
	if env := os.Getenv("WAYFIRE_PLUGIN_PATH"); env != "" {
		paths = append(paths, strings.Split(env, ":")...)
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home := os.Getenv("HOME"); home != "" {
			dataHome = home + "/.local/share"
		}
	}
	if dataHome != "" {
		paths = append(paths, dataHome+"/wayfire/plugins")
	}
	if configPrefix != "" {
		paths = append(paths, configPrefix)
	}
	return paths
}
