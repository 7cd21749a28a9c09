// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package oxbow provides the shared contracts used by the per-format
// scanners: the source opener abstraction, the textual region grammar
// and common scan options.
//
// Each format package (bam, sam, vcf, bcf, fasta, fastq, gxf, bed, bbi)
// exposes a Scanner that decodes its format into Apache Arrow record
// batches. Scanners are constructed from a Source, read their header
// eagerly, and stream batches through a batch.Stream.
package oxbow

// DefaultBatchSize is the maximum number of rows per emitted record
// batch when no batch size option is given.
const DefaultBatchSize = 1024

// DefaultScanRows is the number of records consumed when discovering
// dynamic field definitions (SAM tags, GFF attributes) before a schema
// is frozen.
const DefaultScanRows = 1024
