package models

import "fmt"

// SyncStatus is the per-file position in the sync lifecycle.
type SyncStatus string

const (
	StatusPending          SyncStatus = "pending"
	StatusUpdated          SyncStatus = "updated"
	StatusEmbedded         SyncStatus = "embedded"
	StatusErrorDownload    SyncStatus = "error_download"
	StatusErrorPDF         SyncStatus = "error_pdf"
	StatusErrorWord        SyncStatus = "error_word"
	StatusErrorChunkLength SyncStatus = "error_chunkLengthExceeded"
	StatusErrorEmbedding   SyncStatus = "error_embedding"
)

var allStatuses = []SyncStatus{
	StatusPending, StatusUpdated, StatusEmbedded, StatusErrorDownload,
	StatusErrorPDF, StatusErrorWord, StatusErrorChunkLength, StatusErrorEmbedding,
}

// RetryStatuses are picked up by the first-time / retry pass.
// error_pdf and error_word are left for an operator.
var RetryStatuses = []SyncStatus{
	StatusPending, StatusErrorDownload, StatusErrorChunkLength, StatusErrorEmbedding,
}

// ReprocessStatuses are picked up by the reprocess pass.
var ReprocessStatuses = []SyncStatus{StatusUpdated}

// processOutcomes are the states a processing attempt can end in.
var processOutcomes = map[SyncStatus]bool{
	StatusEmbedded:         true,
	StatusErrorDownload:    true,
	StatusErrorPDF:         true,
	StatusErrorWord:        true,
	StatusErrorChunkLength: true,
	StatusErrorEmbedding:   true,
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (SyncStatus, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown sync status %q", s)
}

func (s SyncStatus) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Selectable reports whether a processing pass may pick up a file in this state.
func (s SyncStatus) Selectable() bool {
	return s == StatusUpdated || contains(RetryStatuses, s)
}

// IsError reports whether s is one of the error_* states.
func (s SyncStatus) IsError() bool {
	switch s {
	case StatusErrorDownload, StatusErrorPDF, StatusErrorWord, StatusErrorChunkLength, StatusErrorEmbedding:
		return true
	}
	return false
}

// CanTransition reports whether moving a file from one status to another is allowed.
//
//   - any state may become updated (drive change) or pending (cleanup after delete/ignore)
//   - a selectable state may end in any processing outcome
//   - error_pdf / error_word may be reset to pending by an operator (covered by the first rule)
func CanTransition(from, to SyncStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch to {
	case StatusUpdated, StatusPending:
		return true
	}
	return from.Selectable() && processOutcomes[to]
}

// Transition returns to when the move is allowed and an error otherwise.
func Transition(from, to SyncStatus) (SyncStatus, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	return to, nil
}

func contains(set []SyncStatus, s SyncStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
