// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables
//  3. Configuration file (YAML)
//  4. Values already present in the target struct
//
// Environment variables use the form <PREFIX><SECTION>_<KEY>. Only the first
// underscore after the prefix separates the section; the rest belong to the
// key, so KERNELGATE_KERNEL_EVAL_TIMEOUT maps to kernel.eval_timeout.
//
// Aliases map fixed variable names onto keys. They are loaded before the
// prefixed variables, which therefore win when both are set.
//
// Watcher reports changes to watched files through fsnotify.
package confloader
