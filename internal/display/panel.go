package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	ErrNotInitialized  = errors.New("display not initialized")
	ErrMatrixCount     = errors.New("bitmap count does not match matrix count")
	ErrMatrixIndex     = errors.New("matrix index out of range")
	ErrBrightnessRange = errors.New("brightness must be within 0-255")

	errUnknownDriver = errors.New("unknown display driver")
)

const (
	defaultBrightness  = 200
	defaultMatrixCount = 4

	captureFilePrefix = "frame_"
	captureLatestFile = "latest.json"
	captureTimeLayout = "20060102T150405.000000000"

	captureFilePerm os.FileMode = 0o644
	captureDirPerm  os.FileMode = 0o755
)

// Panel is a row of LED matrices.
type Panel interface {
	Initialize() error
	RenderFrame(index int, b Bitmap) error
	RenderAll(bitmaps []Bitmap) error
	Clear() error
	Shutdown() error
	Brightness() int
	SetBrightness(level int) error
	Ready() bool
	MatrixCount() int
}

// MemoryPanel keeps frames in memory. It backs tests and headless runs.
type MemoryPanel struct {
	mu         sync.Mutex
	matrices   []Bitmap
	brightness int
	ready      bool
	renders    int
}

func NewMemoryPanel(matrixCount int) *MemoryPanel {
	if matrixCount <= 0 {
		matrixCount = defaultMatrixCount
	}
	return &MemoryPanel{
		matrices:   make([]Bitmap, matrixCount),
		brightness: defaultBrightness,
	}
}

func (p *MemoryPanel) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = true
	return nil
}

func (p *MemoryPanel) RenderFrame(index int, b Bitmap) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return ErrNotInitialized
	}
	if index < 0 || index >= len(p.matrices) {
		return fmt.Errorf("%w: %d", ErrMatrixIndex, index)
	}
	p.matrices[index] = b
	p.renders++
	return nil
}

func (p *MemoryPanel) RenderAll(bitmaps []Bitmap) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return ErrNotInitialized
	}
	if len(bitmaps) != len(p.matrices) {
		return fmt.Errorf("%w: got %d, want %d", ErrMatrixCount, len(bitmaps), len(p.matrices))
	}
	copy(p.matrices, bitmaps)
	p.renders++
	return nil
}

func (p *MemoryPanel) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.matrices {
		p.matrices[i].Clear()
	}
	return nil
}

func (p *MemoryPanel) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = false
	return nil
}

func (p *MemoryPanel) Brightness() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brightness
}

func (p *MemoryPanel) SetBrightness(level int) error {
	if level < 0 || level > 255 {
		return fmt.Errorf("%w: %d", ErrBrightnessRange, level)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brightness = level
	return nil
}

func (p *MemoryPanel) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *MemoryPanel) MatrixCount() int {
	return len(p.matrices)
}

// Frame returns the bitmap currently shown on matrix index.
func (p *MemoryPanel) Frame(index int) (Bitmap, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.matrices) {
		return Bitmap{}, false
	}
	return p.matrices[index], true
}

// Renders counts successful render calls.
func (p *MemoryPanel) Renders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders
}

// CapturePanel behaves like MemoryPanel and also writes every rendered frame
// set to a JSON file, so output can be inspected without hardware.
type CapturePanel struct {
	*MemoryPanel
	dir string
	now func() time.Time
}

// CapturedFrame is the on-disk shape of one capture.
type CapturedFrame struct {
	CapturedAt time.Time `json:"captured_at"`
	Brightness int       `json:"brightness"`
	Matrices   []Bitmap  `json:"matrices"`
}

func NewCapturePanel(matrixCount int, dir string) *CapturePanel {
	return &CapturePanel{
		MemoryPanel: NewMemoryPanel(matrixCount),
		dir:         dir,
		now:         time.Now,
	}
}

func (p *CapturePanel) Initialize() error {
	if err := os.MkdirAll(p.dir, captureDirPerm); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}
	return p.MemoryPanel.Initialize()
}

func (p *CapturePanel) RenderFrame(index int, b Bitmap) error {
	if err := p.MemoryPanel.RenderFrame(index, b); err != nil {
		return err
	}
	return p.capture()
}

func (p *CapturePanel) RenderAll(bitmaps []Bitmap) error {
	if err := p.MemoryPanel.RenderAll(bitmaps); err != nil {
		return err
	}
	return p.capture()
}

func (p *CapturePanel) capture() error {
	p.mu.Lock()
	frame := CapturedFrame{
		CapturedAt: p.now().UTC(),
		Brightness: p.brightness,
		Matrices:   append([]Bitmap(nil), p.matrices...),
	}
	p.mu.Unlock()

	data, err := json.MarshalIndent(frame, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	name := captureFilePrefix + frame.CapturedAt.Format(captureTimeLayout) + ".json"
	if err := os.WriteFile(filepath.Join(p.dir, name), data, captureFilePerm); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, captureLatestFile), data, captureFilePerm); err != nil {
		return fmt.Errorf("write latest frame: %w", err)
	}
	return nil
}

// NewPanel builds the panel named by driver ("memory" or "capture").
func NewPanel(driver string, matrixCount int, captureDir string) (Panel, error) {
	switch driver {
	case "", "memory":
		return NewMemoryPanel(matrixCount), nil
	case "capture":
		return NewCapturePanel(matrixCount, captureDir), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
	}
}
