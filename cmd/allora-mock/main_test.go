package main

import (
	"reflect"
	"testing"
	"time"

	"allora/internal/mockserver"
)

func TestParseArgs_Defaults(t *testing.T) {
	cli, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs() failed: %v", err)
	}
	if cli.Server.Addr != "127.0.0.1:7860" {
		t.Errorf("Expected default addr, got %q", cli.Server.Addr)
	}
	if cli.Server.Text != mockserver.DefaultText || cli.Server.Chunks != nil {
		t.Errorf("Expected default text and no chunks, got %+v", cli.Server)
	}
	if cli.Server.Delay != 0 || cli.Server.FailFirst != 0 {
		t.Errorf("Expected no delay or failures, got %+v", cli.Server)
	}
}

func TestParseArgs_ChunksAndDelay(t *testing.T) {
	cli, err := parseArgs([]string{"-chunks", "Hel,lo, world", "-delay", "25", "-fail-first", "2", "-log-format", "json"})
	if err != nil {
		t.Fatalf("parseArgs() failed: %v", err)
	}
	want := []string{"Hel", "lo", " world"}
	if !reflect.DeepEqual(cli.Server.Chunks, want) {
		t.Errorf("Expected chunks %q, got %q", want, cli.Server.Chunks)
	}
	if cli.Server.Text != "" {
		t.Errorf("Expected -chunks to override text, got %q", cli.Server.Text)
	}
	if cli.Server.Delay != 25*time.Millisecond {
		t.Errorf("Expected 25ms delay, got %v", cli.Server.Delay)
	}
	if cli.Server.FailFirst != 2 {
		t.Errorf("Expected fail-first 2, got %d", cli.Server.FailFirst)
	}
	if cli.Log.Format != "json" {
		t.Errorf("Expected json log format, got %q", cli.Log.Format)
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := [][]string{
		{"-delay", "-5"},
		{"-delay", "soon"},
		{"-fail-first", "-1"},
		{"stray"},
	}
	for _, args := range tests {
		if _, err := parseArgs(args); err == nil {
			t.Errorf("Expected error for %q", args)
		}
	}
}
