package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"lab-dashboard/models"

	"github.com/andybalholm/brotli"
)

// storedChunk is the on-wire form of a chunk. The embedding is a
// little-endian float32 sequence (base64 inside JSON).
type storedChunk struct {
	Idx       int    `json:"idx"`
	Text      string `json:"text"`
	Embedding []byte `json:"embedding,omitempty"`
}

// EncodeEmbedding packs vec as little-endian IEEE 754 float32 values; the
// length is derived from the blob size on decode.
func EncodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding reverses EncodeEmbedding
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vectorstore: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// encodeChunks serializes a document's chunks into one brotli-compressed blob
func encodeChunks(chunks []models.VectorChunk) ([]byte, error) {
	stored := make([]storedChunk, len(chunks))
	for i, c := range chunks {
		stored[i] = storedChunk{Idx: c.Idx, Text: c.Text, Embedding: EncodeEmbedding(c.Embedding)}
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeChunks(docID string, blob []byte) ([]models.VectorChunk, error) {
	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return nil, fmt.Errorf("decompress chunks of %s: %w", docID, err)
	}

	var stored []storedChunk
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode chunks of %s: %w", docID, err)
	}

	chunks := make([]models.VectorChunk, len(stored))
	for i, s := range stored {
		vec, err := DecodeEmbedding(s.Embedding)
		if err != nil {
			return nil, err
		}
		chunks[i] = models.VectorChunk{DocID: docID, Idx: s.Idx, Text: s.Text, Embedding: vec}
	}
	return chunks, nil
}
