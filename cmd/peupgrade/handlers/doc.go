// Package handlers implements the peupgrade commands. Each handler loads
// configuration, wires the transports and runs the requested operation.
package handlers
