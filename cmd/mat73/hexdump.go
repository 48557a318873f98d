package main

import (
	"context"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/scigolib/mat73/internal/state"
)

func runHexdump(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.NArg() == 0 {
		return errNoFile
	}
	fname := cmd.Args().First()
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("unable to open '%s': %w", fname, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("unable to stat '%s': %w", fname, err)
	}
	offset, length := cmd.Int64("offset"), cmd.Int("length")
	if offset < 0 || offset >= fi.Size() {
		return fmt.Errorf("invalid offset %d (file size %d)", offset, fi.Size())
	}
	if length < 1 {
		return fmt.Errorf("invalid length %d", length)
	}
	if remaining := fi.Size() - offset; int64(length) > remaining {
		env.Log.Warn("Requested length exceeds file size", zap.Int("requested", length), zap.Int64("dumping", remaining))
		length = int(remaining)
	}

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read failed after %d of %d bytes: %w", n, length, err)
	}
	return hexdump(os.Stdout, buf[:n], offset)
}

// hexdump writes data 16 bytes per line with file offsets and an ASCII
// column.
func hexdump(w io.Writer, data []byte, offset int64) error {
	for i := 0; i < len(data); i += 16 {
		chunk := data[i:min(i+16, len(data))]

		line := fmt.Sprintf("%08x: ", offset+int64(i))
		for j := range 16 {
			if j < len(chunk) {
				line += fmt.Sprintf("%02x ", chunk[j])
			} else {
				line += "   "
			}
			if j == 7 {
				line += " "
			}
		}
		line += " |"
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				line += string(rune(b))
			} else {
				line += "."
			}
		}
		if _, err := fmt.Fprintln(w, line+"|"); err != nil {
			return err
		}
	}
	return nil
}
