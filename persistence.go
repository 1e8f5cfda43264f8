package infidex

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
)

const (
	infdxMagic   = "INFDX2"
	infdxVersion = uint32(2)
)

// Format flags, spec §6.
const (
	FlagHasFst                   uint32 = 1
	FlagHasShortQueryIndex       uint32 = 2
	FlagHasWordMatcher           uint32 = 4 // reserved: no section is defined for this bit and SaveIndex never sets it
	FlagCompressed               uint32 = 8
	FlagHasDocumentMetadataCache uint32 = 16
)

// PersistenceConfig selects which optional sections Save writes.
type PersistenceConfig struct {
	IncludeFst                   bool
	IncludeShortQueryIndex       bool
	IncludeDocumentMetadataCache bool
	Compress                     bool
}

// DefaultPersistenceConfig writes every optional section, uncompressed.
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		IncludeFst:                   true,
		IncludeShortQueryIndex:       true,
		IncludeDocumentMetadataCache: true,
	}
}

// persistedTerm is the on-disk shape of a non-stop Term (spec §6 section 2).
type persistedTerm struct {
	Text     string
	DF       int32
	Postings []Posting
}

// docMetaEntry is one row of the document metadata cache (spec §6 section 5).
type docMetaEntry struct {
	FirstToken string
	TokenCount uint16
}

// PersistedIndex is everything a frozen Engine snapshot carries into the
// INFDX2 container, independent of the in-memory collection types Engine
// builds from it on load.
type PersistedIndex struct {
	Documents   []Document
	Terms       []persistedTerm
	ForwardFst  *FstIndex
	ReverseFst  *FstIndex
	PrefixIndex *PositionalPrefixIndex
	DocMeta     []docMetaEntry
}

// rotateXorChecksum implements spec §6's checksum algorithm: c starts at
// 0x12345678; each 4-byte little-endian word (zero-padded tail) XORs in
// and the result rotates left by 7.
func rotateXorChecksum(data []byte) uint32 {
	c := uint32(0x12345678)
	for i := 0; i < len(data); i += 4 {
		var buf [4]byte
		n := copy(buf[:], data[i:])
		_ = n
		w := binary.LittleEndian.Uint32(buf[:])
		c = bits.RotateLeft32(c^w, 7)
	}
	return c
}

func headerChecksum(version, flags, docCount, termCount uint32) uint32 {
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], version)
	binary.LittleEndian.PutUint32(buf[4:8], flags)
	binary.LittleEndian.PutUint32(buf[8:12], docCount)
	binary.LittleEndian.PutUint32(buf[12:16], termCount)
	return rotateXorChecksum(buf[:])
}

// SaveIndex writes idx as an INFDX2 file to w.
func SaveIndex(w io.Writer, idx *PersistedIndex, cfg PersistenceConfig) error {
	var flags uint32
	if cfg.IncludeFst {
		flags |= FlagHasFst
	}
	if cfg.IncludeShortQueryIndex {
		flags |= FlagHasShortQueryIndex
	}
	if cfg.IncludeDocumentMetadataCache {
		flags |= FlagHasDocumentMetadataCache
	}
	if cfg.Compress {
		flags |= FlagCompressed
	}

	var body bytes.Buffer
	bw := bufio.NewWriter(&body)

	if err := writeDocumentsSection(bw, idx.Documents); err != nil {
		return err
	}
	if err := writeTermsSection(bw, idx.Terms); err != nil {
		return err
	}
	if cfg.IncludeFst {
		if idx.ForwardFst == nil || idx.ReverseFst == nil {
			return fmt.Errorf("%w: fst section requested but fst is nil", ErrInvalidArgument)
		}
		if err := idx.ForwardFst.Serialize(bw); err != nil {
			return err
		}
		if err := idx.ReverseFst.Serialize(bw); err != nil {
			return err
		}
	}
	if cfg.IncludeShortQueryIndex {
		if idx.PrefixIndex == nil {
			return fmt.Errorf("%w: short-query index section requested but index is nil", ErrInvalidArgument)
		}
		if err := idx.PrefixIndex.Serialize(bw); err != nil {
			return err
		}
	}
	if cfg.IncludeDocumentMetadataCache {
		if err := writeDocMetaSection(bw, idx.DocMeta); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return &IoError{Op: "flush index body", Err: err}
	}

	data := body.Bytes()
	if cfg.Compress {
		var gz bytes.Buffer
		zw := gzip.NewWriter(&gz)
		if _, err := zw.Write(data); err != nil {
			return &IoError{Op: "gzip index body", Err: err}
		}
		if err := zw.Close(); err != nil {
			return &IoError{Op: "close gzip writer", Err: err}
		}
		data = gz.Bytes()
	}

	docCount := uint32(len(idx.Documents))
	termCount := uint32(len(idx.Terms))

	if _, err := w.Write([]byte(infdxMagic)); err != nil {
		return &IoError{Op: "write magic", Err: err}
	}
	for _, v := range []uint32{infdxVersion, flags, docCount, termCount} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return &IoError{Op: "write header field", Err: err}
		}
	}
	if err := binary.Write(w, binary.LittleEndian, headerChecksum(infdxVersion, flags, docCount, termCount)); err != nil {
		return &IoError{Op: "write header checksum", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return &IoError{Op: "write data length", Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return &IoError{Op: "write data", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, rotateXorChecksum(data)); err != nil {
		return &IoError{Op: "write data checksum", Err: err}
	}
	return nil
}

// LoadIndex reads the format written by SaveIndex.
func LoadIndex(r io.Reader) (*PersistedIndex, error) {
	magic := make([]byte, len(infdxMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, &IoError{Op: "read magic", Err: err}
	}
	if string(magic) != infdxMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidIndexFormat)
	}

	var version, flags, docCount, termCount, headerChk, dataLen uint32
	for _, dst := range []*uint32{&version, &flags, &docCount, &termCount} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, &IoError{Op: "read header field", Err: err}
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &headerChk); err != nil {
		return nil, &IoError{Op: "read header checksum", Err: err}
	}
	if version != infdxVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidIndexFormat, version)
	}
	if headerChecksum(version, flags, docCount, termCount) != headerChk {
		return nil, fmt.Errorf("%w: header checksum mismatch", ErrInvalidIndexFormat)
	}
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return nil, &IoError{Op: "read data length", Err: err}
	}

	data := make([]byte, dataLen)
	if dataLen > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, &IoError{Op: "read data", Err: err}
		}
	}
	var dataChk uint32
	if err := binary.Read(r, binary.LittleEndian, &dataChk); err != nil {
		return nil, &IoError{Op: "read data checksum", Err: err}
	}
	if rotateXorChecksum(data) != dataChk {
		return nil, fmt.Errorf("%w: data checksum mismatch", ErrInvalidIndexFormat)
	}

	if flags&FlagCompressed != 0 {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &IoError{Op: "open gzip reader", Err: err}
		}
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return nil, &IoError{Op: "read gzip body", Err: err}
		}
		data = decompressed
	}

	br := bufio.NewReader(bytes.NewReader(data))
	idx := &PersistedIndex{}

	docs, err := readDocumentsSection(br)
	if err != nil {
		return nil, err
	}
	idx.Documents = docs

	terms, err := readTermsSection(br)
	if err != nil {
		return nil, err
	}
	idx.Terms = terms

	if flags&FlagHasFst != 0 {
		fwd, err := DeserializeFst(br)
		if err != nil {
			return nil, err
		}
		rev, err := DeserializeFst(br)
		if err != nil {
			return nil, err
		}
		idx.ForwardFst, idx.ReverseFst = fwd, rev
	}
	if flags&FlagHasShortQueryIndex != 0 {
		pi, err := DeserializePositionalPrefixIndex(br)
		if err != nil {
			return nil, err
		}
		idx.PrefixIndex = pi
	}
	if flags&FlagHasDocumentMetadataCache != 0 {
		meta, err := readDocMetaSection(br)
		if err != nil {
			return nil, err
		}
		idx.DocMeta = meta
	}

	return idx, nil
}

func writeDocumentsSection(w io.Writer, docs []Document) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(docs))); err != nil {
		return &IoError{Op: "write document count", Err: err}
	}
	for _, d := range docs {
		if err := binary.Write(w, binary.LittleEndian, d.ID); err != nil {
			return &IoError{Op: "write document id", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, d.DocumentKey); err != nil {
			return &IoError{Op: "write document key", Err: err}
		}
		if err := writeLPString(w, d.IndexedText); err != nil {
			return err
		}
		if err := writeLPString(w, d.ClientInformation); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, d.SegmentNumber); err != nil {
			return &IoError{Op: "write document segment", Err: err}
		}
		// jsonIdx: reserved slot for the out-of-scope external JSON
		// dataset loader (spec §1 Non-goals); always -1, ignored on read.
		if err := binary.Write(w, binary.LittleEndian, int32(-1)); err != nil {
			return &IoError{Op: "write document json index", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, d.Deleted); err != nil {
			return &IoError{Op: "write document deleted flag", Err: err}
		}
	}
	return nil
}

func readDocumentsSection(r *bufio.Reader) ([]Document, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &IoError{Op: "read document count", Err: err}
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative document count", ErrInvalidIndexFormat)
	}
	docs := make([]Document, count)
	for i := range docs {
		var d Document
		if err := binary.Read(r, binary.LittleEndian, &d.ID); err != nil {
			return nil, &IoError{Op: "read document id", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &d.DocumentKey); err != nil {
			return nil, &IoError{Op: "read document key", Err: err}
		}
		text, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		info, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		d.IndexedText = text
		d.ClientInformation = info
		if err := binary.Read(r, binary.LittleEndian, &d.SegmentNumber); err != nil {
			return nil, &IoError{Op: "read document segment", Err: err}
		}
		var jsonIdx int32
		if err := binary.Read(r, binary.LittleEndian, &jsonIdx); err != nil {
			return nil, &IoError{Op: "read document json index", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &d.Deleted); err != nil {
			return nil, &IoError{Op: "read document deleted flag", Err: err}
		}
		docs[i] = d
	}
	return docs, nil
}

func writeTermsSection(w io.Writer, terms []persistedTerm) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(terms))); err != nil {
		return &IoError{Op: "write term count", Err: err}
	}
	for _, t := range terms {
		if err := writeLPString(w, t.Text); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, t.DF); err != nil {
			return &IoError{Op: "write term df", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(t.Postings))); err != nil {
			return &IoError{Op: "write term posting count", Err: err}
		}
		for _, p := range t.Postings {
			if err := binary.Write(w, binary.LittleEndian, p.DocID); err != nil {
				return &IoError{Op: "write term posting docid", Err: err}
			}
			if err := binary.Write(w, binary.LittleEndian, p.Weight); err != nil {
				return &IoError{Op: "write term posting weight", Err: err}
			}
		}
	}
	return nil
}

func readTermsSection(r *bufio.Reader) ([]persistedTerm, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &IoError{Op: "read term count", Err: err}
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative term count", ErrInvalidIndexFormat)
	}
	terms := make([]persistedTerm, count)
	for i := range terms {
		text, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		var df, postingCount int32
		if err := binary.Read(r, binary.LittleEndian, &df); err != nil {
			return nil, &IoError{Op: "read term df", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &postingCount); err != nil {
			return nil, &IoError{Op: "read term posting count", Err: err}
		}
		if postingCount < 0 {
			return nil, fmt.Errorf("%w: negative term posting count", ErrInvalidIndexFormat)
		}
		postings := make([]Posting, postingCount)
		for j := range postings {
			if err := binary.Read(r, binary.LittleEndian, &postings[j].DocID); err != nil {
				return nil, &IoError{Op: "read term posting docid", Err: err}
			}
			if err := binary.Read(r, binary.LittleEndian, &postings[j].Weight); err != nil {
				return nil, &IoError{Op: "read term posting weight", Err: err}
			}
		}
		terms[i] = persistedTerm{Text: text, DF: df, Postings: postings}
	}
	return terms, nil
}

func writeDocMetaSection(w io.Writer, meta []docMetaEntry) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(meta))); err != nil {
		return &IoError{Op: "write doc meta count", Err: err}
	}
	for _, m := range meta {
		if err := writeLPString(w, m.FirstToken); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, m.TokenCount); err != nil {
			return &IoError{Op: "write doc meta token count", Err: err}
		}
	}
	return nil
}

func readDocMetaSection(r *bufio.Reader) ([]docMetaEntry, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &IoError{Op: "read doc meta count", Err: err}
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative doc meta count", ErrInvalidIndexFormat)
	}
	meta := make([]docMetaEntry, count)
	for i := range meta {
		text, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		var tc uint16
		if err := binary.Read(r, binary.LittleEndian, &tc); err != nil {
			return nil, &IoError{Op: "read doc meta token count", Err: err}
		}
		meta[i] = docMetaEntry{FirstToken: text, TokenCount: tc}
	}
	return meta, nil
}
