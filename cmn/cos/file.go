package cos

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/teris-io/shortid"
)

// GenTie produces a short random token used to name temp files so that two
// concurrent writers of the same destination never collide, mirroring the
// teacher's cmn/jsp tmp-file naming (filepath + ".tmp." + cos.GenTie()).
func GenTie() string {
	id, err := shortid.Generate()
	if err != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return id
}

// CreateFile creates fpath, including parent directories, truncating any
// existing content.
func CreateFile(fpath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// RemoveFile removes fpath, ignoring a "does not exist" error.
func RemoveFile(fpath string) error {
	err := os.Remove(fpath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func FlushClose(f *os.File) error {
	if err := f.Sync(); err != nil {
		Close(f)
		return err
	}
	return f.Close()
}

func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		glog.Errorf("failed to close: %v", err)
	}
}

// SaveAtomic writes data to fpath by first writing to a sibling temp file
// and renaming it over the destination once fully flushed, exactly the
// pattern the teacher's cmn/jsp.Save uses for metadata persistence. A crash
// mid-write leaves only the temp file behind; fpath itself is never
// observed partially written.
func SaveAtomic(fpath string, write func(w io.Writer) error) (err error) {
	tmp := fpath + ".tmp." + GenTie()
	f, err := CreateFile(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if nestedErr := RemoveFile(tmp); nestedErr != nil {
				glog.Errorf("nested (%v): failed to remove %s: %v", err, tmp, nestedErr)
			}
		}
	}()
	if err = write(f); err != nil {
		Close(f)
		return err
	}
	if err = FlushClose(f); err != nil {
		return err
	}
	return os.Rename(tmp, fpath)
}
