// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

// Chunk is a contiguous sub-range of an operation batch, guaranteed not to
// exceed the static row ceiling. StartRow is the chunk's absolute offset in
// the batch so the transport can address it without recomputing context.
type Chunk struct {
	Kind     OpKind
	Ops      []Operation
	StartRow int
}

// GridChunk is a size-bounded block of a cell grid for range-addressed
// targets. Offsets are zero-based positions in the full grid.
type GridChunk struct {
	Values   [][]any
	RowOff   int
	ColOff   int
	Appended bool // append-style chunk: the remote locates insertion itself
}

// ChunkIterator lazily yields the chunks of one operation batch. The
// sequence is finite and non-restartable.
type ChunkIterator struct {
	batch      *OperationBatch
	rowCeiling int
	next       int
}

// Chunks partitions a batch strictly by the row ceiling. For row-addressed
// (record-oriented) targets no column ceiling applies. A ceiling of zero or
// less means a single chunk.
func Chunks(batch *OperationBatch, rowCeiling int) *ChunkIterator {
	return &ChunkIterator{batch: batch, rowCeiling: rowCeiling}
}

// Next returns the following chunk, or false when the batch is exhausted.
func (it *ChunkIterator) Next() (Chunk, bool) {
	if it.batch == nil || it.next >= len(it.batch.Ops) {
		return Chunk{}, false
	}
	end := len(it.batch.Ops)
	if it.rowCeiling > 0 && it.next+it.rowCeiling < end {
		end = it.next + it.rowCeiling
	}
	chunk := Chunk{
		Kind:     it.batch.Kind,
		Ops:      it.batch.Ops[it.next:end],
		StartRow: it.next,
	}
	it.next = end
	return chunk, true
}

// GridChunkIterator lazily yields the blocks of a cell grid, column groups in
// ascending column order and row blocks in ascending row order within each
// group, so a wide dataset is column-sliced before row-sliced.
type GridChunkIterator struct {
	grid       [][]any
	rows, cols int
	rowCeiling int
	colCeiling int
	appendOnly bool

	colStart int
	rowStart int
	done     bool
}

// GridChunks partitions grid into blocks of at most rowCeiling×colCeiling
// cells. Ceilings of zero or less are unbounded on that axis.
func GridChunks(grid [][]any, rowCeiling, colCeiling int) *GridChunkIterator {
	it := &GridChunkIterator{grid: grid, rowCeiling: rowCeiling, colCeiling: colCeiling}
	it.rows = len(grid)
	if it.rows > 0 {
		it.cols = len(grid[0])
	}
	it.done = it.rows == 0 || it.cols == 0
	return it
}

// AppendChunks partitions grid for append-style writes: row-chunked only,
// since the remote service locates the insertion position itself and there is
// no column range to honor.
func AppendChunks(grid [][]any, rowCeiling int) *GridChunkIterator {
	it := GridChunks(grid, rowCeiling, 0)
	it.appendOnly = true
	return it
}

// Next returns the following grid block, or false when the grid is exhausted.
func (it *GridChunkIterator) Next() (GridChunk, bool) {
	if it.done {
		return GridChunk{}, false
	}

	colEnd := it.cols
	if it.colCeiling > 0 && it.colStart+it.colCeiling < colEnd {
		colEnd = it.colStart + it.colCeiling
	}
	rowEnd := it.rows
	if it.rowCeiling > 0 && it.rowStart+it.rowCeiling < rowEnd {
		rowEnd = it.rowStart + it.rowCeiling
	}

	values := make([][]any, 0, rowEnd-it.rowStart)
	for r := it.rowStart; r < rowEnd; r++ {
		rowCells := make([]any, colEnd-it.colStart)
		for c := it.colStart; c < colEnd; c++ {
			if c < len(it.grid[r]) {
				rowCells[c-it.colStart] = it.grid[r][c]
			} else {
				rowCells[c-it.colStart] = ""
			}
		}
		values = append(values, rowCells)
	}

	chunk := GridChunk{
		Values:   values,
		RowOff:   it.rowStart,
		ColOff:   it.colStart,
		Appended: it.appendOnly,
	}

	// Advance: row-major inside the column group, then the next group.
	it.rowStart = rowEnd
	if it.rowStart >= it.rows {
		it.rowStart = 0
		it.colStart = colEnd
		if it.colStart >= it.cols {
			it.done = true
		}
	}
	return chunk, true
}
