package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/JustinTDCT/Posteract/internal/config"
)

const margin = 40

// Service composites a PNG badge or logo onto downloaded posters.
type Service struct {
	basePath  string
	outputDir string
	position  string
	opacity   float64
	scale     float64
	logger    *slog.Logger
}

func NewService(cfg config.OverlayConfig, logger *slog.Logger) *Service {
	s := &Service{
		basePath:  cfg.Path,
		outputDir: cfg.OutputDir,
		position:  cfg.Position,
		opacity:   cfg.Opacity,
		scale:     cfg.Scale,
		logger:    logger.With("component", "overlay"),
	}
	if s.scale <= 0 || s.scale > 1 {
		s.scale = 0.15
	}
	if s.opacity <= 0 || s.opacity > 1 {
		s.opacity = 1
	}
	if s.position == "" {
		s.position = "bottom-right"
	}
	return s
}

// Apply draws overlayFilename (looked up in the overlay directory) onto the
// poster and writes the result as PNG into the output directory. The overlay
// is scaled to a fraction of the poster width.
func (s *Service) Apply(posterPath, overlayFilename string) (string, error) {
	poster, err := decodeFile(posterPath)
	if err != nil {
		return "", fmt.Errorf("open poster: %w", err)
	}
	overlayPath := filepath.Join(s.basePath, overlayFilename)
	if _, err := os.Stat(overlayPath); err != nil {
		return "", fmt.Errorf("overlay not found: %s", overlayPath)
	}
	badge, err := decodeFile(overlayPath)
	if err != nil {
		return "", fmt.Errorf("open overlay: %w", err)
	}

	pb := poster.Bounds()
	ob := badge.Bounds()
	if ob.Dx() == 0 || ob.Dy() == 0 {
		return "", fmt.Errorf("overlay %s is empty", overlayPath)
	}
	width := int(float64(pb.Dx()) * s.scale)
	height := int(float64(ob.Dy()) * float64(width) / float64(ob.Dx()))
	if width == 0 || height == 0 {
		return "", fmt.Errorf("poster %s too small for overlay", posterPath)
	}
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), badge, ob, draw.Src, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, pb.Dx(), pb.Dy()))
	draw.Draw(canvas, canvas.Bounds(), poster, pb.Min, draw.Src)

	at := s.origin(canvas.Bounds().Size(), scaled.Bounds().Size())
	mask := image.NewUniform(color.Alpha{A: uint8(s.opacity * 255)})
	draw.DrawMask(canvas, scaled.Bounds().Add(at), scaled, image.Point{}, mask, image.Point{}, draw.Over)

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create overlay output dir: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(posterPath), filepath.Ext(posterPath)) + ".png"
	out := filepath.Join(s.outputDir, name)
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, canvas); err != nil {
		f.Close()
		os.Remove(out)
		return "", fmt.Errorf("encode %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	s.logger.Info("overlay applied", "output", out)
	return out, nil
}

func (s *Service) origin(poster, badge image.Point) image.Point {
	switch s.position {
	case "bottom-right":
		return image.Pt(poster.X-badge.X-margin, poster.Y-badge.Y-margin)
	case "bottom-left":
		return image.Pt(margin, poster.Y-badge.Y-margin)
	case "top-right":
		return image.Pt(poster.X-badge.X-margin, margin)
	case "top-left":
		return image.Pt(margin, margin)
	case "center":
		return image.Pt((poster.X-badge.X)/2, (poster.Y-badge.Y)/2)
	}
	return image.Point{}
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
