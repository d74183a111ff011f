package asset

import "encoding/json"

// jsonGLTFDecoder is a minimal reference GLTFDecoder covering only the
// JSON-embedded-accessor flavor of glTF (a "file" is a small JSON
// document already containing flat position/index arrays). Binary
// .glb containers, external buffer/accessor indexing, and endian-aware
// buffer-view slicing belong to a real GLTFDecoder implementation
// supplied by the embedder, not to this package.
type jsonGLTFDecoder struct {
	files map[string]gltfDocument
}

type gltfDocument struct {
	Positions []float32 `json:"positions"`
	Indices   []uint32  `json:"indices"`
}

// NewJSONGLTFDecoder builds a GLTFDecoder backed by an in-memory table of
// pre-parsed documents, primarily useful for tests and examples.
func NewJSONGLTFDecoder(files map[string][]byte) (GLTFDecoder, error) {
	d := &jsonGLTFDecoder{files: make(map[string]gltfDocument, len(files))}
	for name, data := range files {
		var doc gltfDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		d.files[name] = doc
	}
	return d, nil
}

func (d *jsonGLTFDecoder) Decode(file string, semanticMask uint32) ([]float32, []uint32, error) {
	doc, ok := d.files[file]
	if !ok {
		return nil, nil, &DecodeError{File: file, Message: "unknown file"}
	}
	return doc.Positions, doc.Indices, nil
}

type DecodeError struct {
	File    string
	Message string
}

func (e *DecodeError) Error() string { return e.File + ": " + e.Message }
