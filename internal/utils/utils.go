// Package utils contains helpers shared across the transfer tool.
package utils

import "strings"

// GitDirectoryName is the name of the Git repository directory.
const GitDirectoryName = ".git"

// DeduplicateStrings removes duplicate values from a slice while preserving order.
// The first occurrence of each value is kept.
func DeduplicateStrings(values []string) []string {
	encounteredValues := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := encounteredValues[value]; !exists {
			encounteredValues[value] = struct{}{}
			result = append(result, value)
		}
	}
	return result
}

// ContainsString checks if a slice of strings contains a specific target string.
func ContainsString(stringSlice []string, targetString string) bool {
	for _, currentString := range stringSlice {
		if currentString == targetString {
			return true
		}
	}
	return false
}

// ChunkStrings splits values into consecutive batches of at most batchSize elements.
// A non-positive batch size yields a single batch.
func ChunkStrings(values []string, batchSize int) [][]string {
	if len(values) == 0 {
		return nil
	}
	if batchSize <= 0 || batchSize >= len(values) {
		return [][]string{values}
	}
	batches := make([][]string, 0, (len(values)+batchSize-1)/batchSize)
	for start := 0; start < len(values); start += batchSize {
		end := min(start+batchSize, len(values))
		batches = append(batches, values[start:end])
	}
	return batches
}

// NonEmptyTrimmed returns the trimmed values that are not blank.
func NonEmptyTrimmed(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmedValue := strings.TrimSpace(value); trimmedValue != "" {
			result = append(result, trimmedValue)
		}
	}
	return result
}
