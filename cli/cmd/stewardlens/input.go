package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// loadInput reads a YAML or JSON metrics file. "-" reads stdin.
// JSON is valid YAML, so one decoder serves both.
func loadInput(path string, stdin io.Reader) (finhealth.Input, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return finhealth.Input{}, exitError(exitBadInput, "cannot read input: %v", err)
		}
		defer f.Close()
		r = f
	}

	var in finhealth.Input
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return finhealth.Input{}, exitError(exitBadInput, "input %s is empty", path)
		}
		return finhealth.Input{}, exitError(exitBadInput, "cannot parse input %s: %v", path, err)
	}
	if err := finhealth.Validate(in); err != nil {
		return finhealth.Input{}, exitError(exitBadInput, "invalid input %s: %v", path, err)
	}
	return in, nil
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown --format %q: want text or json", format)
}
