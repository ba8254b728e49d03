package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// decodeInput reads JSON from the named file, or from stdin for "" and "-".
func decodeInput(stdin io.Reader, path string, out any) error {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func inputPath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
