package infidex

import (
	"bufio"
	"encoding/binary"
	"sort"
)

// segReaderCursor walks one term's posting block from a loaded segment,
// shifting every docId by the base offset the owning engine assigned this
// segment at load time. It satisfies segmentPostingsCursor from term.go.
type segReaderCursor struct {
	postings   []Posting
	pos        int
	baseOffset int32
}

func (c *segReaderCursor) HasNext() bool { return c.pos < len(c.postings) }

func (c *segReaderCursor) Next() (int32, uint8) {
	p := c.postings[c.pos]
	c.pos++
	return p.DocID + c.baseOffset, p.Weight
}

// SegmentWriter accumulates (term -> local postings) for one append-only
// batch of documents and serializes it as a segment (spec §4.9).
// Postings for a term must already be sorted ascending by the writer's
// own local docId space; the writer does not re-sort across terms.
type SegmentWriter struct {
	docCount int32
	terms    map[string][]Posting
}

// NewSegmentWriter returns an empty segment builder.
func NewSegmentWriter() *SegmentWriter {
	return &SegmentWriter{terms: make(map[string][]Posting)}
}

// SetDocCount records how many documents this segment's local docId space
// spans.
func (w *SegmentWriter) SetDocCount(n int32) { w.docCount = n }

// AddTerm adds (or overwrites) one term's posting list, sorted ascending
// by this segment's local docId.
func (w *SegmentWriter) AddTerm(text string, postings []Posting) {
	w.terms[text] = postings
}

// Write serializes the segment: docCount, the term count, an FST over the
// sorted term texts, the terms directory (text + posting count per output id, in FST
// output order), then each term's posting block in that same order.
func (w *SegmentWriter) Write(out *bufio.Writer) error {
	texts := make([]string, 0, len(w.terms))
	for t := range w.terms {
		texts = append(texts, t)
	}
	sort.Strings(texts)

	outputs := make([]int32, len(texts))
	for i := range texts {
		outputs[i] = int32(i)
	}
	fst, err := BuildFst(texts, outputs)
	if err != nil {
		return err
	}

	if err := binary.Write(out, binary.LittleEndian, w.docCount); err != nil {
		return &IoError{Op: "write segment doc count", Err: err}
	}
	if err := binary.Write(out, binary.LittleEndian, int32(len(texts))); err != nil {
		return &IoError{Op: "write segment term count", Err: err}
	}
	if err := fst.Serialize(out); err != nil {
		return err
	}
	for _, t := range texts {
		if err := writeLPString(out, t); err != nil {
			return err
		}
		postings := w.terms[t]
		if err := binary.Write(out, binary.LittleEndian, int32(len(postings))); err != nil {
			return &IoError{Op: "write segment posting count", Err: err}
		}
	}
	for _, t := range texts {
		postings := w.terms[t]
		for _, p := range postings {
			if err := binary.Write(out, binary.LittleEndian, p.DocID); err != nil {
				return &IoError{Op: "write segment posting docid", Err: err}
			}
		}
		for _, p := range postings {
			if err := binary.Write(out, binary.LittleEndian, p.Weight); err != nil {
				return &IoError{Op: "write segment posting weight", Err: err}
			}
		}
	}
	return out.Flush()
}

// SegmentReader is a fully loaded, immutable segment: an FST over its term
// vocabulary plus each term's posting block, in FST-output order (spec
// §4.9).
type SegmentReader struct {
	docCount     int32
	fst          *FstIndex
	texts        []string
	termPostings [][]Posting
}

// ReadSegment reads the format written by SegmentWriter.Write.
func ReadSegment(r *bufio.Reader) (*SegmentReader, error) {
	var docCount, termCount int32
	if err := binary.Read(r, binary.LittleEndian, &docCount); err != nil {
		return nil, &IoError{Op: "read segment doc count", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &termCount); err != nil {
		return nil, &IoError{Op: "read segment term count", Err: err}
	}
	fst, err := DeserializeFst(r)
	if err != nil {
		return nil, err
	}

	texts := make([]string, termCount)
	counts := make([]int32, termCount)
	for i := int32(0); i < termCount; i++ {
		text, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		var count int32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, &IoError{Op: "read segment posting count", Err: err}
		}
		texts[i] = text
		counts[i] = count
	}

	termPostings := make([][]Posting, termCount)
	for i, count := range counts {
		ids := make([]int32, count)
		if count > 0 {
			if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
				return nil, &IoError{Op: "read segment posting docids", Err: err}
			}
		}
		weights := make([]uint8, count)
		if count > 0 {
			if err := binary.Read(r, binary.LittleEndian, weights); err != nil {
				return nil, &IoError{Op: "read segment posting weights", Err: err}
			}
		}
		postings := make([]Posting, count)
		for j := range postings {
			postings[j] = Posting{DocID: ids[j], Weight: weights[j]}
		}
		termPostings[i] = postings
	}

	return &SegmentReader{docCount: docCount, fst: fst, texts: texts, termPostings: termPostings}, nil
}

// PostingsCursor returns a cursor over text's postings, shifted by
// baseOffset. An unknown term yields an exhausted cursor.
func (r *SegmentReader) PostingsCursor(text string, baseOffset int32) segmentPostingsCursor {
	output, ok := r.fst.GetExact(text)
	if !ok {
		return &segReaderCursor{}
	}
	return &segReaderCursor{postings: r.termPostings[output], baseOffset: baseOffset}
}

// DocCount reports the segment's local document count.
func (r *SegmentReader) DocCount() int32 { return r.docCount }

// AllTerms returns every term text this segment has postings for.
func (r *SegmentReader) AllTerms() []string { return r.texts }

// MergeSegments k-way merges several segments into one unified
// SegmentWriter: each input segment's docIds are shifted by the running
// base offset (the sum of the doc counts of the segments before it in the
// input slice), and posting lists for a
// shared term are concatenated then resorted ascending (spec §4.9, S6).
func MergeSegments(readers []*SegmentReader) *SegmentWriter {
	baseOffsets := make([]int32, len(readers))
	var totalDocs int32
	for i, r := range readers {
		baseOffsets[i] = totalDocs
		totalDocs += r.DocCount()
	}

	textSet := make(map[string]struct{})
	for _, r := range readers {
		for _, t := range r.AllTerms() {
			textSet[t] = struct{}{}
		}
	}

	w := NewSegmentWriter()
	w.SetDocCount(totalDocs)
	for text := range textSet {
		var merged []Posting
		for i, r := range readers {
			output, ok := r.fst.GetExact(text)
			if !ok {
				continue
			}
			for _, p := range r.termPostings[output] {
				merged = append(merged, Posting{DocID: p.DocID + baseOffsets[i], Weight: p.Weight})
			}
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i].DocID < merged[j].DocID })
		w.AddTerm(text, merged)
	}
	return w
}
