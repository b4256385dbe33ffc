package main

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestScanReaderLongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	r := newScanReader(strings.NewReader(long + "\nshort\n"))

	line, err := r.ReadLine("")
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if len(line) != len(long) {
		t.Errorf("len(line) = %d, want %d", len(line), len(long))
	}
	if line, _ := r.ReadLine(""); line != "short" {
		t.Errorf("second line = %q, want %q", line, "short")
	}
	if _, err := r.ReadLine(""); !errors.Is(err, io.EOF) {
		t.Errorf("ReadLine at end = %v, want io.EOF", err)
	}
}

func TestScanReaderLineTooLong(t *testing.T) {
	r := newScanReader(strings.NewReader(strings.Repeat("x", maxInputLine+1)))
	_, err := r.ReadLine("")
	if err == nil || errors.Is(err, io.EOF) {
		t.Errorf("ReadLine = %v, want a scanner error", err)
	}
}
