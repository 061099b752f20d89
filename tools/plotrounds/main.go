// Command plotrounds renders the result lines of a captured benchmark console
// as a PNG, or as a raw ARGB8888 image for a framebuffer console.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	gg "github.com/fogleman/gg"
)

func main() {
	width := flag.Int("width", 1200, "image width in pixels")
	height := flag.Int("height", 600, "image height in pixels")
	raw := flag.Bool("raw", false, "write width, height and ARGB8888 pixels instead of PNG")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: plotrounds [flags] <console-capture|-> <output>\n")
		fmt.Fprintf(os.Stderr, "Plots the probe time of every round in a benchmark console capture\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	inputPath := flag.Arg(0)
	outputPath := flag.Arg(1)

	var in io.Reader = os.Stdin
	if inputPath != "-" {
		file, err := os.Open(inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening capture: %v\n", err)
			os.Exit(1)
		}
		defer file.Close()
		in = file
	}

	tr, err := Parse(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing capture: %v\n", err)
		os.Exit(1)
	}
	min, max, median := tr.Stats()
	fmt.Printf("Rounds: %d (desync %d, other lines %d)\n", len(tr.Rounds), tr.Desyncs, tr.Skipped)
	fmt.Printf("Cycles: min %d, median %d, max %d\n", min, median, max)

	img := Render(tr, *width, *height)

	if !*raw {
		if err := gg.SavePNG(outputPath, img); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing image: %v\n", err)
			os.Exit(1)
		}
		return
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	if err := WriteARGB(outFile, img); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing image: %v\n", err)
		os.Exit(1)
	}
	if err := outFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing output file: %v\n", err)
		os.Exit(1)
	}
}
