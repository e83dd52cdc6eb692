package io

import (
	"io"

	"github.com/spf13/afero"

	u "github.com/m-ll/backup/util"
)

func CreateFile(fs afero.Fs, filepath string) (afero.File, error) {
	f, err := fs.Create(filepath)
	if err != nil {
		return nil, u.WrapErr("create "+filepath, err)
	}
	return f, nil
}

func OpenFile(fs afero.Fs, filepath string) (afero.File, error) {
	f, err := fs.Open(filepath)
	if err != nil {
		return nil, u.WrapErr("open "+filepath, err)
	}
	return f, nil
}

func FileSize(fs afero.Fs, filepath string) (int64, error) {
	fi, err := fs.Stat(filepath)
	if err != nil {
		return 0, u.WrapErr("get stat", err)
	}
	return fi.Size(), nil
}

// ReadStream allocates one buffer of the file's size and fills it with a
// single sequential read.
func ReadStream(fs afero.Fs, filepath string) ([]byte, error) {
	size, err := FileSize(fs, filepath)
	if err != nil {
		return nil, err
	}
	f, err := OpenFile(fs, filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, u.WrapErr("read "+filepath, err)
	}
	return buf, nil
}

// WriteStream creates filepath and hands it to write.
func WriteStream(fs afero.Fs, filepath string, write func(w io.Writer) error) (err error) {
	f, err := CreateFile(fs, filepath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = u.WrapErr("close "+filepath, cerr)
		}
	}()
	return write(f)
}
