package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

// WriteARGB writes img in the framebuffer embedding format: width and height
// as little-endian uint32, then width*height ARGB8888 pixels.
func WriteARGB(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint32(bounds.Dx())); err != nil {
		return fmt.Errorf("writing width: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(bounds.Dy())); err != nil {
		return fmt.Errorf("writing height: %w", err)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			// 16-bit to 8-bit channels
			pixel := uint32(a/257)<<24 | uint32(r/257)<<16 | uint32(g/257)<<8 | uint32(b/257)
			if err := binary.Write(bw, binary.LittleEndian, pixel); err != nil {
				return fmt.Errorf("writing pixel data: %w", err)
			}
		}
	}
	return bw.Flush()
}
