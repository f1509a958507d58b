// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package fsais

// Stats reports the raw I/O volume and shape of a completed Build.
// Raw counters only; formatting them for a human is the caller's job.
type Stats struct {
	BytesRead    int64
	BytesWritten int64
	Blocks       int
	TextLen      int
	// StarCount is the number of star positions the induction driver
	// named, plus-star and minus-star together
	// (internal/induce.Result.MaxStarName tracks the distinct-name
	// count, this field the raw position count).
	StarCount int
	// MaxStarName is the number of distinct star-substring names Pass
	// A/B assigned across both star flavors. Pass A recurses on its
	// reduced name string (via block.SortSuffixes) whenever its
	// plus-star names are not all distinct.
	MaxStarName int32
}
