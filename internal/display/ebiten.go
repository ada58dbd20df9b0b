package display

import (
	"fmt"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// EbitenDisplay renders the mirrored panel using Ebitengine.
// Q and E rotate the picture, F toggles fullscreen.
type EbitenDisplay struct {
	title string

	mu      sync.Mutex
	frame   *image.RGBA
	fresh   bool
	status  string
	frames  int
	rotated Rotation

	ebitenImage *ebiten.Image
}

// NewEbitenDisplay creates an Ebitengine-based display.
func NewEbitenDisplay(title string) *EbitenDisplay {
	return &EbitenDisplay{title: title, status: "connecting"}
}

// SetFrame updates the displayed frame (called from network goroutine).
func (d *EbitenDisplay) SetFrame(img *image.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = img
	d.fresh = true
	d.frames++
}

// SetStatus sets the line shown while no frame is available.
func (d *EbitenDisplay) SetStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (d *EbitenDisplay) Run() error {
	ebiten.SetWindowSize(624, 827)
	ebiten.SetWindowTitle(d.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(d)
}

func (d *EbitenDisplay) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyQ):
		d.mu.Lock()
		d.rotated = d.rotated.Left()
		d.mu.Unlock()
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		d.mu.Lock()
		d.rotated = d.rotated.Right()
		d.mu.Unlock()
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	d.mu.Lock()
	frame, fresh, status, frames, rot := d.frame, d.fresh, d.status, d.frames, d.rotated
	d.fresh = false
	d.mu.Unlock()

	screen.Fill(image.White)
	if frame == nil {
		ebitenutil.DebugPrint(screen, status)
		return
	}

	fw, fh := frame.Bounds().Dx(), frame.Bounds().Dy()
	if d.ebitenImage == nil ||
		d.ebitenImage.Bounds().Dx() != fw ||
		d.ebitenImage.Bounds().Dy() != fh {
		d.ebitenImage = ebiten.NewImage(fw, fh)
		fresh = true
	}
	if fresh {
		d.ebitenImage.WritePixels(frame.Pix)
	}

	sw, sh := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	scale, _, _ := fit(sw, sh, float64(fw), float64(fh), rot)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-float64(fw)/2, -float64(fh)/2)
	op.GeoM.Rotate(rot.Radians())
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(sw/2, sh/2)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(d.ebitenImage, op)

	ebitenutil.DebugPrint(screen, fmt.Sprintf("%s  frames %d  rotate %d", status, frames, rot.Degrees()))
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
