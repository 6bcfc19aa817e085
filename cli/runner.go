// Package cli provides a command-line runner for the emulator.
// It handles input polling and runs the emulator in a window.
// This follows the libretro pattern where the frontend is responsible
// for polling input and pushing it to the core via Press/Release.
package cli

import (
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/bengdahl/gb-emu/emu"
)

// M-cycles per video frame: 70224 T-states, four per M-cycle.
const cyclesPerFrame = 70224 / 4

// Runner wraps a Gameboy core as an ebiten.Game.
type Runner struct {
	gb       *emu.Gameboy
	savePath string

	screen *ebiten.Image
	pix    []byte

	// Previous poll results, to turn level input into press/release
	// edges for the joypad.
	held [8]bool
}

// buttonKeys maps each Game Boy button to its keyboard bindings.
var buttonKeys = [8][]ebiten.Key{
	emu.ButtonRight:  {ebiten.KeyD, ebiten.KeyArrowRight},
	emu.ButtonLeft:   {ebiten.KeyA, ebiten.KeyArrowLeft},
	emu.ButtonUp:     {ebiten.KeyW, ebiten.KeyArrowUp},
	emu.ButtonDown:   {ebiten.KeyS, ebiten.KeyArrowDown},
	emu.ButtonA:      {ebiten.KeyJ, ebiten.KeyZ},
	emu.ButtonB:      {ebiten.KeyK, ebiten.KeyX},
	emu.ButtonSelect: {ebiten.KeyShiftRight, ebiten.KeyBackspace},
	emu.ButtonStart:  {ebiten.KeyEnter},
}

// NewRunner creates a Runner for the given core. savePath, when not
// empty, names the battery RAM file loaded now and written by Close.
func NewRunner(gb *emu.Gameboy, savePath string) *Runner {
	r := &Runner{
		gb:       gb,
		savePath: savePath,
		screen:   ebiten.NewImage(emu.ScreenWidth, emu.ScreenHeight),
		pix:      make([]byte, emu.ScreenWidth*emu.ScreenHeight*4),
	}
	r.loadBattery()
	return r
}

// Close persists battery RAM, if the cartridge has any.
func (r *Runner) Close() {
	r.saveBattery()
}

// Update implements ebiten.Game: poll input, then run one frame.
func (r *Runner) Update() error {
	if !ebiten.IsFocused() {
		return nil
	}

	r.pollInput()

	for i := 0; i < cyclesPerFrame; i++ {
		r.gb.Clock()
	}
	return nil
}

// Draw implements ebiten.Game.
func (r *Runner) Draw(screen *ebiten.Image) {
	r.gb.Frame().WriteRGBA(r.pix)
	r.screen.WritePixels(r.pix)
	screen.DrawImage(r.screen, nil)
}

// Layout implements ebiten.Game. Ebiten scales the fixed LCD resolution
// to the window.
func (r *Runner) Layout(outsideWidth, outsideHeight int) (int, int) {
	return emu.ScreenWidth, emu.ScreenHeight
}

// pollInput reads keyboard and gamepad state and pushes button edges
// into the core.
func (r *Runner) pollInput() {
	var down [8]bool
	for b, keys := range buttonKeys {
		for _, k := range keys {
			if ebiten.IsKeyPressed(k) {
				down[b] = true
			}
		}
	}

	// Gamepad support (all connected gamepads)
	for _, id := range ebiten.AppendGamepadIDs(nil) {
		if !ebiten.IsStandardGamepadLayoutAvailable(id) {
			continue
		}

		pressed := func(b ebiten.StandardGamepadButton) bool {
			return ebiten.IsStandardGamepadButtonPressed(id, b)
		}
		down[emu.ButtonUp] = down[emu.ButtonUp] || pressed(ebiten.StandardGamepadButtonLeftTop)
		down[emu.ButtonDown] = down[emu.ButtonDown] || pressed(ebiten.StandardGamepadButtonLeftBottom)
		down[emu.ButtonLeft] = down[emu.ButtonLeft] || pressed(ebiten.StandardGamepadButtonLeftLeft)
		down[emu.ButtonRight] = down[emu.ButtonRight] || pressed(ebiten.StandardGamepadButtonLeftRight)
		down[emu.ButtonA] = down[emu.ButtonA] || pressed(ebiten.StandardGamepadButtonRightBottom)
		down[emu.ButtonB] = down[emu.ButtonB] || pressed(ebiten.StandardGamepadButtonRightRight)
		down[emu.ButtonSelect] = down[emu.ButtonSelect] || pressed(ebiten.StandardGamepadButtonCenterLeft)
		down[emu.ButtonStart] = down[emu.ButtonStart] || pressed(ebiten.StandardGamepadButtonCenterRight)

		// Left analog stick (with deadzone)
		const deadzone = 0.5
		axisX := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal)
		axisY := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical)
		if axisX < -deadzone {
			down[emu.ButtonLeft] = true
		}
		if axisX > deadzone {
			down[emu.ButtonRight] = true
		}
		if axisY < -deadzone {
			down[emu.ButtonUp] = true
		}
		if axisY > deadzone {
			down[emu.ButtonDown] = true
		}
	}

	for b := range down {
		if down[b] == r.held[b] {
			continue
		}
		if down[b] {
			r.gb.Press(emu.Button(b))
		} else {
			r.gb.Release(emu.Button(b))
		}
		r.held[b] = down[b]
	}
}

// loadBattery restores cartridge RAM from the save file.
func (r *Runner) loadBattery() {
	if r.savePath == "" || !r.gb.Cart().HasBattery() {
		return
	}
	data, err := os.ReadFile(r.savePath)
	if err != nil {
		return
	}
	ram := r.gb.Cart().RAM()
	copy(ram[:], data)
}

// saveBattery writes cartridge RAM to the save file.
func (r *Runner) saveBattery() {
	if r.savePath == "" || !r.gb.Cart().HasBattery() {
		return
	}
	ram := r.gb.Cart().RAM()
	_ = os.WriteFile(r.savePath, ram[:], 0o644)
}
