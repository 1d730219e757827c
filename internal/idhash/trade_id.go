// Package idhash computes deterministic identifiers so reruns over the same
// inputs produce the same rows.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|ticker|entry_date) over the UTC date.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID, ticker string, entryDate time.Time) string {
	data := fmt.Sprintf("%s|%s|%s", runID, ticker, entryDate.UTC().Format("2006-01-02"))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a deterministic run_id from a label and the config
// version it was produced under.
func ComputeRunID(label, configVersion string) string {
	data := fmt.Sprintf("%s|%s", label, configVersion)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
