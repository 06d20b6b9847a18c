package hooks

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunner_Run(t *testing.T) {
	tests := []struct {
		name       string
		hooks      []string
		wantFailed int
		wantOut    string
	}{
		{name: "no hooks", hooks: nil, wantFailed: 0, wantOut: ""},
		{name: "in order", hooks: []string{"echo one", "echo two"}, wantFailed: 0, wantOut: "one\ntwo\n"},
		{name: "failure does not stop the rest", hooks: []string{"exit 3", "echo after"}, wantFailed: 1, wantOut: "after\n"},
		{name: "shell features", hooks: []string{"printf 'a b' | tr ' ' '-'"}, wantFailed: 0, wantOut: "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			r := Runner{Stdout: &out, Stderr: &errOut}
			failed := r.Run(context.Background(), "on_started", tt.hooks)
			assert.Equal(t, tt.wantFailed, failed)
			assert.Equal(t, tt.wantOut, out.String())
		})
	}
}
