package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/spf13/cobra"

	"github.com/gogpu/rthist"
	"github.com/gogpu/rthist/compute"
	"github.com/gogpu/rthist/internal/imageio"
	"github.com/gogpu/rthist/internal/rendercmd"
	"github.com/gogpu/rthist/internal/transfer"
)

var (
	backendName   string
	intensityName string
	strict        bool
	repeat        int
	resize        string
	asJSON        bool
	plotPath      string
	fenceTimeout  time.Duration
)

var histogramCmd = &cobra.Command{
	Use:   "histogram IMAGE...",
	Short: "Compute the intensity histogram of images",
	Long: `Loads each image, uploads it as a BGRA8 render target and computes its
256-bin intensity histogram through the render-target bridge.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistogram,
}

func init() {
	histogramCmd.Flags().StringVar(&backendName, "backend", "auto", "Compute backend: auto, gpu, cpu")
	histogramCmd.Flags().StringVar(&intensityName, "intensity", "luma", "Intensity mode: luma, average, max, lightness")
	histogramCmd.Flags().BoolVar(&strict, "strict", false, "Fail when the backend reports a diagnostic")
	histogramCmd.Flags().IntVar(&repeat, "repeat", 1, "Compute each histogram N times")
	histogramCmd.Flags().StringVar(&resize, "resize", "", "Resize images to WxH before upload (0 keeps aspect)")
	histogramCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON results")
	histogramCmd.Flags().StringVar(&plotPath, "plot", "", "Write a bar chart of each histogram to this file")
	histogramCmd.Flags().DurationVar(&fenceTimeout, "fence-timeout", 5*time.Second, "GPU fence wait timeout")
	rootCmd.AddCommand(histogramCmd)
}

// result is the JSON form of one histogram.
type result struct {
	Image      string      `json:"image"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Backend    string      `json:"backend"`
	Total      uint64      `json:"total"`
	Mean       float64     `json:"mean"`
	Peak       int         `json:"peak"`
	Percentile [3]int      `json:"p5_p50_p95"`
	Elapsed    string      `json:"elapsed"`
	Bins       [256]uint32 `json:"bins"`
}

func runHistogram(cmd *cobra.Command, args []string) error {
	mode, err := compute.ParseIntensity(intensityName)
	if err != nil {
		return err
	}
	backend, err := selectBackend(backendName, mode, fenceTimeout)
	if err != nil {
		return err
	}
	var fitW, fitH int
	if resize != "" {
		if fitW, fitH, err = parseSize(resize); err != nil {
			return err
		}
	}
	if repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dev, err := rthist.SystemDevice()
	if err != nil {
		return err
	}

	// Uploads and the bridge share one render thread.
	queue := rendercmd.New(0)
	defer queue.Close()

	opts := []rthist.Option{
		rthist.WithCommandQueue(queue),
		rthist.WithStrictDiagnostics(strict),
		rthist.WithFenceTimeout(fenceTimeout),
		rthist.WithIntensity(mode),
	}
	if backend != nil {
		opts = append(opts, rthist.WithBackend(backend))
	}
	bridge, err := rthist.New(rthist.FromHAL(dev.HAL, dev.Queue, dev.Name), opts...)
	if err != nil {
		return err
	}
	defer bridge.Close()

	out := cmd.OutOrStdout()
	for i, path := range args {
		res, err := histogramImage(ctx, bridge, queue, dev, path, fitW, fitH)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if plotPath != "" {
			if err := imageio.Save(imageio.Plot(res.Bins[:], 128), plotName(plotPath, i, len(args))); err != nil {
				return err
			}
		}
		if err := printResult(out, res); err != nil {
			return err
		}
	}

	st := bridge.Stats()
	slog.Info("bridge stats", "calls", st.Calls, "failures", st.Failures,
		"reallocations", st.Reallocations, "diagnostics", st.Diagnostics)
	return nil
}

func histogramImage(ctx context.Context, bridge *rthist.Bridge, queue *rendercmd.Queue, dev *rthist.Device, path string, fitW, fitH int) (*result, error) {
	img, err := imageio.Load(path)
	if err != nil {
		return nil, err
	}
	if fitW > 0 || fitH > 0 {
		img = imageio.Fit(img, fitW, fitH)
	}
	pix, w, h := imageio.ToBGRA(img)

	var tex hal.Texture
	err = queue.SubmitAndWait(ctx, func() error {
		var err error
		tex, err = transfer.Upload(dev.HAL, dev.Queue, filepath.Base(path),
			uint32(w), uint32(h), gputypes.TextureFormatBGRA8Unorm, pix) //nolint:gosec // image dimensions fit in uint32
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer func() {
		_ = queue.Enqueue(func() { dev.HAL.DestroyTexture(tex) })
	}()

	target := uploadedTarget(tex, filepath.Base(path), w, h)

	var hist rthist.Histogram
	start := time.Now()
	for range repeat {
		if err := bridge.ComputeHistogram(ctx, target, &hist); err != nil {
			return nil, err
		}
	}
	elapsed := time.Since(start) / time.Duration(repeat)

	peak, _ := hist.Peak()
	return &result{
		Image:      path,
		Width:      w,
		Height:     h,
		Backend:    bridge.BackendName(),
		Total:      hist.Total(),
		Mean:       hist.Mean(),
		Peak:       peak,
		Percentile: [3]int{hist.Percentile(0.05), hist.Percentile(0.5), hist.Percentile(0.95)},
		Elapsed:    elapsed.String(),
		Bins:       hist,
	}, nil
}

// uploadedTarget describes a texture created by transfer.Upload.
func uploadedTarget(tex hal.Texture, label string, w, h int) *rthist.Target {
	return &rthist.Target{
		Texture: tex,
		Width:   uint32(w), //nolint:gosec // image dimensions fit in uint32
		Height:  uint32(h), //nolint:gosec // image dimensions fit in uint32
		Format:  gputypes.TextureFormatBGRA8Unorm,
		Usage:   transfer.UploadedUsage,
		Label:   label,
	}
}

func printResult(w io.Writer, r *result) error {
	if asJSON {
		return json.NewEncoder(w).Encode(r)
	}
	_, err := fmt.Fprintf(w, "%s: %dx%d backend=%s total=%d mean=%.2f peak=%d p5=%d p50=%d p95=%d (%s/call)\n",
		r.Image, r.Width, r.Height, r.Backend, r.Total, r.Mean, r.Peak,
		r.Percentile[0], r.Percentile[1], r.Percentile[2], r.Elapsed)
	return err
}

// selectBackend returns nil for "auto", which leaves the bridge default.
func selectBackend(name string, mode compute.Intensity, timeout time.Duration) (compute.Backend, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return nil, nil
	case "gpu":
		return &compute.GPU{Intensity: mode, Timeout: timeout}, nil
	case "cpu":
		return &compute.CPU{Intensity: mode, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want auto, gpu or cpu)", name)
	}
}

// parseSize parses "WxH". Either side may be 0 but not both.
func parseSize(s string) (w, h int, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	if w, err = strconv.Atoi(ws); err != nil || w < 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	if h, err = strconv.Atoi(hs); err != nil || h < 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}
	if w == 0 && h == 0 {
		return 0, 0, fmt.Errorf("invalid size %q, both sides are 0", s)
	}
	return w, h, nil
}

// plotName returns path for a single image, and path with "-N" before the
// extension when several images are plotted.
func plotName(path string, i, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i, ext)
}
