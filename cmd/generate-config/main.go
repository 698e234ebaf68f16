// Command generate-config writes an example configuration with every default
// filled in.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/wikidraft/internal/config"
)

const header = "# wikidraft configuration example\n# Copy this file to config.yaml and customize as needed\n\n"

func main() {
	output := flag.String("o", "config.example.yaml", "output file, - for stdout")
	flag.Parse()

	if *output == "-" {
		if err := writeExample(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
			os.Exit(1)
		}
		return
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
		os.Exit(1)
	}
	if err := writeExample(f); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", *output)
}

func writeExample(w io.Writer) error {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
