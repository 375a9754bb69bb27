package renderer

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/chewxy/math32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"golang.org/x/image/font/basicfont"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/tracer"
	"github.com/MinusKelvin/pbr-gpu/types"
)

const (
	// Coefficient for converting delta cursor movements to yaw/pitch
	// camera angles.
	mouseSensitivity float32 = 0.005

	// Camera movement speed per tick.
	cameraMoveSpeed float32 = 0.05

	// Multiplier applied to the exposure per key press.
	exposureStep float32 = 1.25

	// Seconds for one turntable revolution.
	orbitSeconds float32 = 12

	// The film preview is re-uploaded at this interval rather than every
	// display frame.
	previewRefreshInterval = 150 * time.Millisecond
)

// An interactive windowed renderer. The frame loop runs on its own
// goroutine while the window thread periodically re-uploads the film
// preview, draws a stats overlay and queues camera edits from the
// keyboard, the mouse and a turntable orbit tween.
type interactiveRenderer struct {
	*defaultRenderer

	frameErr  chan error
	frameDone bool

	preview     *ebiten.Image
	lastRefresh time.Time
	overlay     string
	showUI      bool

	exposure float32

	dragging   bool
	lastCursor types.Vec2

	orbit       *gween.Tween
	orbitCenter types.Vec3
	orbitRadius float32
	orbitHeight float32
	orbitPhase  float32
}

// Create an interactive renderer. Without a sample or wall clock budget
// the frame keeps refining until the window closes.
func NewInteractive(packed *scene.PackedScene, camera *scene.Camera, tracers []tracer.Tracer, scheduler tracer.BlockScheduler, opts Options) (Renderer, error) {
	if opts.SamplesPerPixel == 0 && opts.WallClockBudget == 0 {
		opts.SamplesPerPixel = math.MaxUint32
	}

	base, err := NewDefault(packed, camera, tracers, scheduler, opts)
	if err != nil {
		return nil, err
	}

	v := &interactiveRenderer{
		defaultRenderer: base.(*defaultRenderer),
		frameErr:        make(chan error, 1),
		showUI:          true,
	}
	v.exposure = v.options.Exposure
	return v, nil
}

// Render opens the window and runs the frame loop behind it until the
// window closes or the loop fails.
func (v *interactiveRenderer) Render() error {
	go func() {
		v.frameErr <- v.defaultRenderer.Render()
	}()

	ebiten.SetWindowSize(int(v.options.FrameW), int(v.options.FrameH))
	ebiten.SetWindowTitle("pbr")
	err := ebiten.RunGame(v)

	if !v.frameDone {
		v.Interrupt()
		if frameErr := <-v.frameErr; frameErr != nil && frameErr != ErrInterrupted && err == nil {
			err = frameErr
		}
	}
	return err
}

func (v *interactiveRenderer) Update() error {
	select {
	case err := <-v.frameErr:
		v.frameDone = true
		if err != nil && err != ErrInterrupted {
			return err
		}
	default:
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		v.showUI = !v.showUI
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		v.exposure *= exposureStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) {
		v.exposure /= exposureStep
	}

	v.updateOrbit()
	v.updateMovement()
	v.updateMouseLook()
	return nil
}

func (v *interactiveRenderer) Draw(screen *ebiten.Image) {
	if v.preview == nil || time.Since(v.lastRefresh) >= previewRefreshInterval {
		v.refreshPreview()
	}
	screen.DrawImage(v.preview, nil)
	if v.showUI {
		text.Draw(screen, v.overlay, basicfont.Face7x13, 8, 20, color.White)
	}
}

func (v *interactiveRenderer) Layout(int, int) (int, int) {
	return int(v.options.FrameW), int(v.options.FrameH)
}

func (v *interactiveRenderer) refreshPreview() {
	v.lastRefresh = time.Now()

	img := FilmImage(v.film, v.exposure)
	if v.preview == nil {
		v.preview = ebiten.NewImage(img.Bounds().Dx(), img.Bounds().Dy())
	}
	v.preview.WritePixels(img.Pix)

	stats := v.Stats()
	state := "tracing"
	if v.frameDone {
		state = "done"
	}
	v.overlay = fmt.Sprintf(
		"%s  %d spp  %.0f fps\nexposure %.2f  mean luminance %.3f  refinements %d",
		state, stats.Samples, ebiten.ActualFPS(), v.exposure, stats.MeanLuminance, stats.Refinements,
	)
}

// Toggle and advance the turntable orbit around the camera target. Each
// revolution eases in and out and the film restarts as the camera moves.
func (v *interactiveRenderer) updateOrbit() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if v.orbit != nil {
			v.orbit = nil
		} else {
			// Snapshot the camera under the renderer lock; queued edits
			// mutate it between passes on the frame loop goroutine.
			v.Lock()
			center := v.camera.LookAt
			offset := v.camera.Position.Sub(center)
			v.Unlock()
			v.orbitCenter = center
			v.orbitHeight = offset[1]
			v.orbitRadius = math32.Sqrt(offset[0]*offset[0] + offset[2]*offset[2])
			v.orbitPhase = math32.Atan2(offset[2], offset[0])
			v.orbit = gween.New(0, 2*math32.Pi, orbitSeconds, ease.InOutQuad)
		}
	}
	if v.orbit == nil {
		return
	}

	angle, done := v.orbit.Update(1 / float32(ebiten.TPS()))
	if done {
		v.orbit = gween.New(0, 2*math32.Pi, orbitSeconds, ease.InOutQuad)
	}

	a := v.orbitPhase + angle
	pos := types.XYZ(
		v.orbitCenter[0]+v.orbitRadius*math32.Cos(a),
		v.orbitCenter[1]+v.orbitHeight,
		v.orbitCenter[2]+v.orbitRadius*math32.Sin(a),
	)
	center := v.orbitCenter
	v.EditCamera(func(c *scene.Camera) {
		c.Position = pos
		c.LookAt = center
		c.Update()
	})
}

func (v *interactiveRenderer) updateMovement() {
	var forward, right float32
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		forward += cameraMoveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		forward -= cameraMoveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		right += cameraMoveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		right -= cameraMoveSpeed
	}
	if forward == 0 && right == 0 {
		return
	}

	// Double speed while shift is held.
	if ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		forward *= 2
		right *= 2
	}

	v.orbit = nil
	v.EditCamera(func(c *scene.Camera) {
		c.Move(forward, right)
	})
}

// The left mouse button rotates the view direction around the eye.
func (v *interactiveRenderer) updateMouseLook() {
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		v.dragging = false
		return
	}

	x, y := ebiten.CursorPosition()
	pos := types.XY(float32(x), float32(y))
	if !v.dragging {
		v.dragging = true
		v.lastCursor = pos
		return
	}

	delta := v.lastCursor.Sub(pos)
	v.lastCursor = pos
	if delta[0] == 0 && delta[1] == 0 {
		return
	}

	pitch := delta[1] * mouseSensitivity
	yaw := delta[0] * mouseSensitivity
	v.orbit = nil
	v.EditCamera(func(c *scene.Camera) {
		c.Pitch = pitch
		c.Yaw = yaw
		c.Update()
		c.Pitch, c.Yaw = 0, 0
	})
}
