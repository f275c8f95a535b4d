package main

import (
	"io/fs"
	"os"
	"path/filepath"
)

// extractEmbeddedModelFiles writes the embedded ONNX model files into dir so
// onnxruntime can load them from disk. Existing files of the same size are
// left alone. It returns the number of files written.
func extractEmbeddedModelFiles(modelFS fs.FS, dir string) (int, error) {
	written := 0
	err := fs.WalkDir(modelFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, err := fs.ReadFile(modelFS, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.Base(path))
		if info, err := os.Stat(target); err == nil && info.Size() == int64(len(content)) {
			return nil
		}
		if written == 0 {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return err
			}
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return err
		}
		written++
		return nil
	})
	return written, err
}
