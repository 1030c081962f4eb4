//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/stepfix/pkg/schema"
)

func main() {
	for _, out := range []struct {
		path string
		gen  func() ([]byte, error)
	}{
		{"schemas/template-v0.json", schema.GenerateJSONSchema},
		{"schemas/profile-v0.json", schema.GenerateProfileJSONSchema},
	} {
		data, err := out.gen()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error generating %s: %v\n", out.path, err)
			os.Exit(1)
		}
		if err := os.MkdirAll("schemas", 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(out.path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote", out.path)
	}
}
