package tn3270

import "strings"

// keyNames maps logical key names, lowercased, to the canonical driver key
// names.
var keyNames = map[string]string{
	"enter":   "Enter",
	"pf1":     "PF1",
	"pf2":     "PF2",
	"pf3":     "PF3",
	"pf4":     "PF4",
	"pf5":     "PF5",
	"pf6":     "PF6",
	"pf7":     "PF7",
	"pf8":     "PF8",
	"pf9":     "PF9",
	"pf10":    "PF10",
	"pf11":    "PF11",
	"pf12":    "PF12",
	"pa1":     "PA1",
	"pa2":     "PA2",
	"pa3":     "PA3",
	"clear":   "Clear",
	"tab":     "Tab",
	"backtab": "BackTab",
}

// KeyName resolves a logical key name to the driver's canonical form. The
// lookup is case-insensitive; unrecognized names pass through verbatim so
// emulator-specific keys remain usable.
func KeyName(name string) string {
	if k, ok := keyNames[strings.ToLower(name)]; ok {
		return k
	}
	return name
}
