package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// AnalysisKey derives the cache key for a repository's analysis result
// from a stable hash of the normalized identifier, so both key spaces can
// share one bounded store.
func AnalysisKey(repoID string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(repoID))))
	return "analysis:" + hex.EncodeToString(sum[:])[:16]
}

// ReportKey addresses a finished report by its own generated identifier.
func ReportKey(reportID string) string {
	return "report:" + strings.TrimSpace(reportID)
}
