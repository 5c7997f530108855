package overlay

import "gocv.io/x/gocv"

// WindowTitle is the default title of the preview window.
const WindowTitle = "Blind Navigation Assistance"

// Window is a desktop preview. It must be used from the goroutine that
// created it.
type Window struct {
	w       *gocv.Window
	quitKey int
}

// NewWindow opens a preview window. Pressing quitKey ends the preview.
func NewWindow(title string, quitKey rune) *Window {
	return &Window{w: gocv.NewWindow(title), quitKey: int(quitKey)}
}

// Show displays frame and polls the keyboard. It reports false once the
// quit key has been pressed.
func (w *Window) Show(frame gocv.Mat) bool {
	w.w.IMShow(frame)
	return !IsQuit(w.w.WaitKey(1), w.quitKey)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.w.Close()
}

// IsQuit reports whether the key code returned by WaitKey is quitKey.
func IsQuit(code, quitKey int) bool {
	return code >= 0 && code&0xFF == quitKey
}
