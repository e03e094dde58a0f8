package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// Icon returns the tray image: PNG data, wrapped in an ICO container on Windows.
func Icon() []byte {
	iconOnce.Do(func() {
		data, err := renderPNG()
		if err != nil {
			return
		}
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconBytes = data
	})
	return iconBytes
}

// renderPNG draws a rounded blue tile with three text lines, the last one short.
func renderPNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	bg := color.NRGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0xff}
	fg := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	const r = 6
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			if insideRounded(x, y, iconSize, r) {
				img.Set(x, y, bg)
			}
		}
	}
	lines := []struct{ y, w int }{{9, 20}, {15, 20}, {21, 12}}
	for _, l := range lines {
		for y := l.y; y < l.y+3; y++ {
			for x := 6; x < 6+l.w; x++ {
				img.Set(x, y, fg)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func insideRounded(x, y, size, r int) bool {
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x >= size-r:
		cx = size - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= size-r:
		cy = size - r - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

// wrapICO embeds a PNG image in a single-entry ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, uint16(0)) // reserved
	_ = binary.Write(&buf, le, uint16(1)) // icon type
	_ = binary.Write(&buf, le, uint16(1)) // image count
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	buf.Write([]byte{dim, dim, 0, 0})
	_ = binary.Write(&buf, le, uint16(1))  // planes
	_ = binary.Write(&buf, le, uint16(32)) // bits per pixel
	_ = binary.Write(&buf, le, uint32(len(pngData)))
	_ = binary.Write(&buf, le, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
