package main

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintUsage_WritesHelpToStderr(t *testing.T) {
	// Capture stderr
	saved := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	printUsage()

	w.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	os.Stderr = saved

	out := buf.String()
	assert.Contains(t, out, "Usage: ofmesh <command> [flags]")
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "controller")
	assert.Contains(t, out, "Flags:")
}

func TestRun_Unit(t *testing.T) {
	orig := runController
	defer func() { runController = orig }()

	tests := map[string]struct {
		args     []string
		stub     func([]string) error
		wantCode int
	}{
		"no args": {
			args:     []string{},
			wantCode: 1,
		},
		"unknown command": {
			args:     []string{"bogus"},
			wantCode: 1,
		},
		"controller ok": {
			args:     []string{"controller"},
			stub:     func([]string) error { return nil },
			wantCode: 0,
		},
		"controller error": {
			args:     []string{"controller"},
			stub:     func([]string) error { return errors.New("boom") },
			wantCode: 1,
		},
		"version": {
			args:     []string{"version"},
			wantCode: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if tt.stub != nil {
				runController = tt.stub
			} else {
				runController = func([]string) error {
					t.Fatal("runController should not be called")
					return nil
				}
			}

			code := run(tt.args)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRun_PassesFlagsThrough(t *testing.T) {
	orig := runController
	defer func() { runController = orig }()

	var got []string
	runController = func(args []string) error {
		got = args
		return nil
	}

	run([]string{"controller", "-config", "custom.yaml"})

	require.Equal(t, []string{"-config", "custom.yaml"}, got)
}
