// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"strings"
	"time"
)

// StageLocation is a parsed stage reference of the form "@<name>[/<path>]".
// The user home stage is named "~".
type StageLocation struct {
	Name string
	Path string
}

// ParseStageLocation parses a stage reference. The leading '@' is mandatory.
func ParseStageLocation(stage string) (*StageLocation, error) {
	if !strings.HasPrefix(stage, "@") {
		return nil, &ArgumentError{Reason: fmt.Sprintf("invalid stage location %q, must start with '@'", stage)}
	}
	name, path, _ := strings.Cut(stage[1:], "/")
	if name == "" {
		return nil, &ArgumentError{Reason: fmt.Sprintf("invalid stage location %q, empty stage name", stage)}
	}
	return &StageLocation{Name: name, Path: path}, nil
}

func (s *StageLocation) String() string {
	return "@" + s.Name + "/" + s.Path
}

// ScratchStagePath returns a fresh upload path under the user home stage for
// staged ingest, unique per call by nanosecond timestamp.
func ScratchStagePath() (string, error) {
	ns := time.Now().UnixNano()
	if ns <= 0 {
		return "", &IOError{Err: fmt.Errorf("nanosecond timestamp unavailable: %d", ns)}
	}
	return fmt.Sprintf("@~/client/load/%d", ns), nil
}
