package tn3270

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"enter", "Enter"},
		{"ENTER", "Enter"},
		{"Enter", "Enter"},
		{"pf1", "PF1"},
		{"PF12", "PF12"},
		{"pa3", "PA3"},
		{"clear", "Clear"},
		{"tab", "Tab"},
		{"backtab", "BackTab"},
		{"BackTab", "BackTab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyName(tt.in), "KeyName(%q)", tt.in)
	}
}

func TestKeyName_Passthrough(t *testing.T) {
	// Unknown names reach the driver unchanged.
	assert.Equal(t, "Attn", KeyName("Attn"))
	assert.Equal(t, "SysReq", KeyName("SysReq"))
}
