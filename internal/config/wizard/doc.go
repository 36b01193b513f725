// Package wizard implements the interactive `peupgrade init` flow.
//
// It asks for the host slots, target version and staging options with
// charmbracelet/huh forms, builds a [config.Config] from the answers and
// writes it as commented YAML.
package wizard
