//go:build !darwin

package relays

// sleeper only has a source of sleep notifications on darwin.
func sleeper(listen chan bool) {}
