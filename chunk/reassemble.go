package chunk

import (
	"io"
	"strconv"

	u "github.com/m-ll/backup/util"
)

// Reassemble concatenates parts in index order.
func Reassemble(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// WriteTo streams parts to w in index order.
func WriteTo(w io.Writer, parts [][]byte) (int64, error) {
	var written int64
	for i, p := range parts {
		n, err := w.Write(p)
		written += int64(n)
		if err != nil {
			return written, u.WrapErr("write chunk "+strconv.Itoa(i), err)
		}
	}
	return written, nil
}
