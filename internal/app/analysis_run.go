package app

import "docinsight/internal/model"

// analysisRun walks a document's chunks strictly in index order. cursor is the
// index of the next chunk to attempt, which is also the number of chunks
// already attempted, so a run can resume from the document's processed count.
type analysisRun struct {
	documentID uint
	chunks     []model.Chunk
	cursor     int

	analyzed int
	failed   int
}

func newAnalysisRun(documentID uint, chunks []model.Chunk, resumeAt int) *analysisRun {
	if resumeAt < 0 {
		resumeAt = 0
	}
	if resumeAt > len(chunks) {
		resumeAt = len(chunks)
	}
	return &analysisRun{documentID: documentID, chunks: chunks, cursor: resumeAt}
}

// next returns the chunk to attempt and advances the cursor.
func (r *analysisRun) next() (model.Chunk, bool) {
	if r.cursor >= len(r.chunks) {
		return model.Chunk{}, false
	}
	c := r.chunks[r.cursor]
	r.cursor++
	return c, true
}

func (r *analysisRun) record(err error) {
	if err != nil {
		r.failed++
		return
	}
	r.analyzed++
}
