// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package cascade

import (
	"os"

	"github.com/docextract/docextract/internal/reliability"
)

const txtPassName = "txt"

// RunTxtPass reads a plain-text input file verbatim as a single page. It
// is the cheapest pass in the cascade: no external tool, no cutoff --
// whatever text is on disk is the result.
func RunTxtPass(path string) Outcome {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the orchestrator's own tree walk
	if err != nil {
		return Outcome{Accepted: false, PassUsed: txtPassName}
	}
	text := string(data)
	score := reliability.Score(text)
	return Outcome{
		Accepted: true,
		Mode:     ModePerDoc,
		DocText:  text,
		Score:    score,
		PassUsed: txtPassName,
		UsedOCR:  false,
	}
}
