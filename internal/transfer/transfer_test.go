package transfer

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func TestAlignedBytesPerRow(t *testing.T) {
	tests := []struct {
		width, bpp uint32
		want       uint32
	}{
		{1, 4, 256},
		{64, 4, 256},
		{65, 4, 512},
		{256, 4, 1024},
		{300, 4, 1280},
		{256, 1, 256},
		{257, 1, 512},
	}
	for _, tt := range tests {
		if got := AlignedBytesPerRow(tt.width, tt.bpp); got != tt.want {
			t.Errorf("AlignedBytesPerRow(%d, %d) = %d, want %d", tt.width, tt.bpp, got, tt.want)
		}
	}
}

func TestStripRowPadding(t *testing.T) {
	// 2 rows of 3 bytes stored with a pitch of 5.
	padded := []byte{1, 2, 3, 0, 0, 4, 5, 6, 0, 0}
	got := StripRowPadding(padded, 2, 3, 5)
	want := []byte{1, 2, 3, 4, 5, 6}
	if !bytes.Equal(got, want) {
		t.Errorf("StripRowPadding() = %v, want %v", got, want)
	}
}

func TestStripRowPaddingNoPadding(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	got := StripRowPadding(data, 2, 4, 4)
	if !bytes.Equal(got, data) {
		t.Errorf("StripRowPadding() = %v, want %v", got, data)
	}
}

func TestPadRowsRoundTrip(t *testing.T) {
	tight := make([]byte, 3*40)
	for i := range tight {
		tight[i] = byte(i)
	}
	padded := padRows(tight, 3, 40, 256)
	if len(padded) != 3*256 {
		t.Fatalf("len(padded) = %d, want %d", len(padded), 3*256)
	}
	if got := StripRowPadding(padded, 3, 40, 256); !bytes.Equal(got, tight) {
		t.Error("StripRowPadding(padRows(x)) != x")
	}
}

func TestCopyTextureNil(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	err := CopyTexture(device, queue, TextureCopy{Width: 4, Height: 4})
	if !errors.Is(err, ErrNilTexture) {
		t.Errorf("CopyTexture(nil textures) = %v, want ErrNilTexture", err)
	}
}

func TestCopyTexture(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	pix := bytes.Repeat([]byte{10, 20, 30, 255}, 16*16)
	src, err := Upload(device, queue, "src", 16, 16, gputypes.TextureFormatBGRA8Unorm, pix)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer device.DestroyTexture(src)

	dst, err := Upload(device, queue, "dst", 16, 16, gputypes.TextureFormatBGRA8Unorm, make([]byte, len(pix)))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer device.DestroyTexture(dst)

	if err := CopyTexture(device, queue, TextureCopy{Src: src, Dst: dst, Width: 16, Height: 16}); err != nil {
		t.Fatalf("CopyTexture failed: %v", err)
	}

	err = CopyTexture(device, queue, TextureCopy{Src: src, Dst: dst})
	if err == nil {
		t.Error("CopyTexture with zero size should fail")
	}
}

func TestUploadSizeMismatch(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	_, err := Upload(device, queue, "bad", 4, 4, gputypes.TextureFormatBGRA8Unorm, make([]byte, 10))
	if err == nil {
		t.Error("Upload with short pixel buffer should fail")
	}
	_, err = Upload(device, queue, "empty", 0, 4, gputypes.TextureFormatBGRA8Unorm, nil)
	if err == nil {
		t.Error("Upload with zero width should fail")
	}
}

func TestReadTextureInvalid(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := ReadTexture(device, queue, nil, 4, 4, 0); !errors.Is(err, ErrNilTexture) {
		t.Errorf("ReadTexture(nil) = %v, want ErrNilTexture", err)
	}
}

func TestReadBuffer(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "read", Size: 8,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	defer device.DestroyBuffer(buf)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := queue.WriteBuffer(buf, 0, want); err != nil {
		t.Fatalf("WriteBuffer failed: %v", err)
	}
	got, err := ReadBuffer(device, buf, 8)
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBuffer = %v, want %v", got, want)
	}

	if _, err := ReadBuffer(device, buf, 16); err == nil {
		t.Error("ReadBuffer past the end should fail")
	}
}

func TestReadTextureTightRows(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tex, err := Upload(device, queue, "src", 8, 3, gputypes.TextureFormatBGRA8Unorm, make([]byte, 8*3*4))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer device.DestroyTexture(tex)

	pix, err := ReadTexture(device, queue, tex, 8, 3, 0)
	if err != nil {
		t.Fatalf("ReadTexture failed: %v", err)
	}
	if len(pix) != 8*3*4 {
		t.Errorf("len = %d, want %d", len(pix), 8*3*4)
	}
}

// stalledQueue never reports a submission as complete.
type stalledQueue struct {
	hal.Queue
}

func (stalledQueue) PollCompleted() uint64 { return 0 }

func TestSubmitAndWaitTimeout(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	encoder, err := BeginEncoding(device, "stalled")
	if err != nil {
		t.Fatalf("BeginEncoding failed: %v", err)
	}
	err = SubmitAndWait(device, stalledQueue{queue}, encoder, 5*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("SubmitAndWait = %v, want ErrTimeout", err)
	}
}

// barrierEncoder records the old usage of every texture barrier.
type barrierEncoder struct {
	hal.CommandEncoder
	old []gputypes.TextureUsage
}

func (e *barrierEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	for _, b := range barriers {
		e.old = append(e.old, b.Usage.OldUsage)
	}
	e.CommandEncoder.TransitionTextures(barriers)
}

type barrierDevice struct {
	hal.Device
	enc *barrierEncoder
}

func (d *barrierDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	d.enc = &barrierEncoder{CommandEncoder: enc}
	return d.enc, nil
}

func TestCopyTextureSourceUsage(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	pix := make([]byte, 4*4*4)
	src, err := Upload(device, queue, "src", 4, 4, gputypes.TextureFormatBGRA8Unorm, pix)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer device.DestroyTexture(src)
	dst, err := Upload(device, queue, "dst", 4, 4, gputypes.TextureFormatBGRA8Unorm, pix)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer device.DestroyTexture(dst)

	tests := []struct {
		name  string
		usage gputypes.TextureUsage
		want  gputypes.TextureUsage
	}{
		{"uploaded", UploadedUsage, gputypes.TextureUsageTextureBinding},
		{"default", 0, gputypes.TextureUsageRenderAttachment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &barrierDevice{Device: device}
			err := CopyTexture(rec, queue, TextureCopy{Src: src, Dst: dst, Width: 4, Height: 4, SrcUsage: tt.usage})
			if err != nil {
				t.Fatalf("CopyTexture failed: %v", err)
			}
			// Barriers: src in, dst in, src back, dst back.
			if len(rec.enc.old) != 4 {
				t.Fatalf("recorded %d barriers, want 4", len(rec.enc.old))
			}
			if rec.enc.old[0] != tt.want {
				t.Errorf("source old usage = %v, want %v", rec.enc.old[0], tt.want)
			}
			if rec.enc.old[2] != gputypes.TextureUsageCopySrc {
				t.Errorf("source restore old usage = %v, want CopySrc", rec.enc.old[2])
			}
		})
	}
}
