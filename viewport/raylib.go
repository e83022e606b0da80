package viewport

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// RaylibSource reads dimensions from the live raylib window. Only valid
// after the window has been initialized.
type RaylibSource struct{}

// Dimensions returns the current window size.
func (RaylibSource) Dimensions() (int, int) {
	return rl.GetScreenWidth(), rl.GetScreenHeight()
}
