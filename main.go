package main

import (
	"flag"
	"log"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/bengdahl/gb-emu/cli"
	"github.com/bengdahl/gb-emu/emu"
	"github.com/bengdahl/gb-emu/romloader"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM file (.gb, or a zip/7z/gz/rar archive)")
	scale := flag.Int("scale", 3, "initial window scale factor")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("no ROM given (use -rom)")
	}

	romData, romName, err := romloader.LoadROM(*romPath)
	if err != nil {
		log.Fatalf("Failed to load ROM: %v", err)
	}

	gb, err := emu.New(romData)
	if err != nil {
		log.Fatalf("Failed to start emulator: %v", err)
	}
	gb.Reset()

	ebiten.SetWindowSize(emu.ScreenWidth*(*scale), emu.ScreenHeight*(*scale))
	ebiten.SetWindowTitle(romName)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(emu.ScreenWidth, emu.ScreenHeight, -1, -1)
	ebiten.SetTPS(60)

	runner := cli.NewRunner(gb, savePathFor(*romPath))
	defer runner.Close()

	if err := ebiten.RunGame(runner); err != nil {
		log.Fatal(err)
	}
}

// savePathFor names the battery RAM file next to the ROM.
func savePathFor(romPath string) string {
	if i := strings.LastIndex(romPath, "."); i > 0 {
		return romPath[:i] + ".sav"
	}
	return romPath + ".sav"
}
