package redact

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// writeFileAtomic writes to a temp file next to path and renames it into
// place, so a failed write never leaves a truncated artifact.
func writeFileAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return pii.NewPathError(pii.KindRedaction, "write_output", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			err = pii.NewPathError(pii.KindRedaction, "write_output", path, err)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// copyFileAtomic copies src to dst through writeFileAtomic.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return pii.NewPathError(pii.KindFileRead, "copy_output", src, err)
	}
	defer in.Close()
	return writeFileAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

var errNoOutputPath = errors.New("output path is empty")
