// Command nebula-view replays an Output Sink binary stream and displays a
// live-updating SEM-style grayscale image of accumulated detected energy
// per pixel coordinate. It is a read-only consumer of whatever a running
// or finished nebula-cpu/nebula-gpu instance has written; it never drives
// or steers a simulation.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"

	"github.com/nebula-sim/nebula/internal/outsink"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	pollInterval = 250 * time.Millisecond
)

func main() {
	width := flag.Int("width", 512, "pixel columns in the accumulated image")
	height := flag.Int("height", 512, "pixel rows in the accumulated image")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nebula-view [--width N] [--height N] <detect-records-file>")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "nebula-view: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	hist := make([]float32, *width**height)
	var maxVal float32
	var recordsSeen int
	leftover := make([]byte, 0, outsink.RecordSize)
	readBuf := make([]byte, 64*1024)

	poll := func() {
		for {
			n, err := f.Read(readBuf)
			if n > 0 {
				leftover = append(leftover, readBuf[:n]...)
				full := len(leftover) - len(leftover)%outsink.RecordSize
				for off := 0; off < full; off += outsink.RecordSize {
					rec := outsink.DecodeRecord(leftover[off : off+outsink.RecordSize])
					x, y := int(rec.Pixel.X), int(rec.Pixel.Y)
					if x >= 0 && x < *width && y >= 0 && y < *height {
						idx := y**width + x
						hist[idx] += rec.Energy
						if hist[idx] > maxVal {
							maxVal = hist[idx]
						}
					}
					recordsSeen++
				}
				leftover = append(leftover[:0], leftover[full:]...)
			}
			if n == 0 || err != nil {
				return
			}
		}
	}

	rl.InitWindow(windowWidth, windowHeight, "Nebula Detector Hit Viewer")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	img := rl.GenImageColor(*width, *height, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	gain := float32(1.0)
	lastPoll := time.Now()

	for !rl.WindowShouldClose() {
		if time.Since(lastPoll) >= pollInterval {
			lastPoll = time.Now()
			poll()
			updateTexture(texture, hist, *width, *height, gain, maxVal)
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(*width), Height: float32(*height)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Records: %d   Max energy: %.2f", recordsSeen, maxVal), 15, statsY, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)
		rl.DrawText("Intensity scale", int32(panelX), int32(panelY), 18, rl.DarkGray)
		panelY += 28

		newGain := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: 200, Height: 20},
			"0.1x", "10x",
			gain, 0.1, 10,
		)
		rl.DrawText(fmt.Sprintf("%.2fx", newGain), int32(panelX+210), int32(panelY+2), 16, rl.DarkGray)
		if newGain != gain {
			gain = newGain
			updateTexture(texture, hist, *width, *height, gain, maxVal)
		}

		rl.EndDrawing()
	}
}

// updateTexture rescales the accumulated histogram against its running max
// and gain into an 8-bit grayscale frame, the same GPU-texture-per-frame
// approach the corpus uses for live field previews.
func updateTexture(texture rl.Texture2D, hist []float32, w, h int, gain, maxVal float32) {
	denom := maxVal
	if denom <= 0 {
		denom = 1
	}
	pixels := make([]color.RGBA, w*h)
	for i, v := range hist {
		g := uint8(clamp01(v/denom*gain) * 255)
		pixels[i] = color.RGBA{R: g, G: g, B: g, A: 255}
	}
	rl.UpdateTexture(texture, pixels)
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
