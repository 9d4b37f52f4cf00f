package finger

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrylevesque/bloodscan/internal/models"
	"github.com/harrylevesque/bloodscan/internal/utils"
)

type fakeBackend struct {
	out     models.Outcome
	err     error
	uploads int32
	scans   int32
	gate    chan struct{}
	entered chan struct{}
	name    string
}

func (f *fakeBackend) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) Upload(_ context.Context, filename string, _ []byte) (models.Outcome, error) {
	atomic.AddInt32(&f.uploads, 1)
	f.name = filename
	f.wait()
	return f.out, f.err
}

func (f *fakeBackend) Scan(context.Context) (models.Outcome, error) {
	atomic.AddInt32(&f.scans, 1)
	f.wait()
	return f.out, f.err
}

func bmp(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, x%h, color.Gray{Y: 200})
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.BMP))
	return buf.Bytes()
}

func conf(v float64) *float64 { return &v }

func TestSelectAcceptsBMP(t *testing.T) {
	c := NewController(&fakeBackend{}, "", nil)
	require.NoError(t, c.Select(File{Name: "print.BMP", Data: bmp(t, 8, 8)}))

	st := c.State()
	assert.Equal(t, "print.BMP", st.Filename)
	assert.True(t, strings.HasPrefix(st.Preview, "data:image/png;base64,"))
	assert.Nil(t, st.Result)
	assert.Empty(t, st.Error)
}

func TestSelectRejectsOtherExtensions(t *testing.T) {
	c := NewController(&fakeBackend{}, ".bmp", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	err := c.Select(File{Name: "photo.png", Data: []byte("png")})
	ve, ok := utils.AsViewError(err)
	require.True(t, ok)
	assert.Equal(t, utils.KindValidation, ve.Kind)

	st := c.State()
	assert.Equal(t, "a.bmp", st.Filename, "selection must be unchanged")
	assert.Equal(t, "Only .bmp fingerprint images supported", st.Error)
}

func TestSelectUndecodableFallsBackToRawPreview(t *testing.T) {
	c := NewController(&fakeBackend{}, "", nil)
	require.NoError(t, c.Select(File{Name: "broken.bmp", Data: []byte("not an image")}))
	assert.True(t, strings.HasPrefix(c.State().Preview, "data:text/plain"))
}

func TestUploadSuccess(t *testing.T) {
	be := &fakeBackend{out: models.Ok{Label: "A+", Confidence: conf(93.5), Preview: "Qk0="}}
	c := NewController(be, "", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	require.NoError(t, c.Upload(context.Background()))

	st := c.State()
	require.NotNil(t, st.Result)
	assert.Equal(t, "A+", st.Result.Label)
	assert.Equal(t, 93.5, *st.Result.Confidence)
	assert.Equal(t, "data:image/bmp;base64,Qk0=", st.Preview)
	assert.Empty(t, st.Error)
	assert.False(t, st.Processing)
	assert.Equal(t, "a.bmp", be.name)
}

func TestUploadSuccessWithoutImageClearsPreview(t *testing.T) {
	be := &fakeBackend{out: models.Ok{}}
	c := NewController(be, "", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	require.NoError(t, c.Upload(context.Background()))

	st := c.State()
	assert.Equal(t, "Unknown Result", st.Result.Label)
	assert.Nil(t, st.Result.Confidence)
	assert.Empty(t, st.Preview)
}

func TestUploadBusinessError(t *testing.T) {
	be := &fakeBackend{out: models.Err{Message: "No fingerprint detected"}}
	c := NewController(be, "", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	require.NoError(t, c.Upload(context.Background()))

	st := c.State()
	assert.Equal(t, "No fingerprint detected", st.Error)
	assert.Nil(t, st.Result)
}

func TestUploadTransportError(t *testing.T) {
	be := &fakeBackend{err: utils.Transport("upload", errors.New("connection refused"))}
	c := NewController(be, "", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	require.NoError(t, c.Upload(context.Background()))
	assert.Equal(t, "Failed to upload. Please try again.", c.State().Error)
}

func TestUploadWithoutSelection(t *testing.T) {
	be := &fakeBackend{}
	c := NewController(be, "", nil)

	assert.ErrorIs(t, c.Upload(context.Background()), utils.ErrNoSelection)
	assert.Zero(t, be.uploads)
	assert.Equal(t, State{Mode: ModeUpload}, c.State())
}

func TestResultAndErrorExclusive(t *testing.T) {
	be := &fakeBackend{}
	c := NewController(be, "", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	steps := []struct {
		out models.Outcome
		err error
	}{
		{out: models.Ok{Label: "B-"}},
		{out: models.Err{Message: "Low quality"}},
		{err: errors.New("reset")},
		{out: models.Ok{Label: "O+", Confidence: conf(50)}},
	}
	for _, s := range steps {
		be.out, be.err = s.out, s.err
		require.NoError(t, c.Upload(context.Background()))
		st := c.State()
		assert.False(t, st.Result != nil && st.Error != "", "both set after %+v", s)
		assert.True(t, st.Result != nil || st.Error != "")

		require.NoError(t, c.Scan(context.Background()))
		st = c.State()
		assert.False(t, st.Result != nil && st.Error != "", "both set after scan %+v", s)
	}
}

func TestScanSuccessKeepsPreview(t *testing.T) {
	be := &fakeBackend{out: models.Ok{Label: "AB+", Confidence: conf(71.25), Preview: "ignored"}}
	c := NewController(be, "", nil)
	require.NoError(t, c.SetMode(ModeScanner))

	require.NoError(t, c.Scan(context.Background()))

	st := c.State()
	assert.Equal(t, ModeScanner, st.Mode)
	assert.Equal(t, "AB+", st.Result.Label)
	assert.Empty(t, st.Preview)
	assert.False(t, st.Scanning)
}

func TestScanTransportError(t *testing.T) {
	be := &fakeBackend{err: errors.New("dial tcp")}
	c := NewController(be, "", nil)

	require.NoError(t, c.Scan(context.Background()))
	assert.Equal(t, "Scanner error. Please check connection.", c.State().Error)
}

func TestSetModeUnknown(t *testing.T) {
	c := NewController(&fakeBackend{}, "", nil)
	assert.Error(t, c.SetMode("camera"))
	assert.Equal(t, ModeUpload, c.State().Mode)
}

func TestDropMatchesPicker(t *testing.T) {
	data := bmp(t, 16, 16)

	picked := NewController(&fakeBackend{}, "", nil)
	require.NoError(t, picked.Select(File{Name: "f.bmp", Data: data}))

	dropped := NewController(&fakeBackend{}, "", nil)
	dropped.DragEnter()
	dropped.Hover(true)
	require.True(t, dropped.State().Overlay)
	require.NoError(t, dropped.Drop(File{Name: "f.bmp", Data: data}))

	st := dropped.State()
	assert.False(t, st.Overlay)
	assert.False(t, st.Dragging)
	assert.Equal(t, picked.State(), st)
}

func TestDragLeaveHidesOverlay(t *testing.T) {
	c := NewController(&fakeBackend{}, "", nil)
	c.DragEnter()
	c.DragLeave()
	assert.False(t, c.State().Overlay)
}

func TestSecondUploadWhileProcessing(t *testing.T) {
	be := &fakeBackend{out: models.Ok{Label: "A+"}, gate: make(chan struct{}), entered: make(chan struct{})}
	c := NewController(be, "", nil)
	require.NoError(t, c.Select(File{Name: "a.bmp", Data: bmp(t, 4, 4)}))

	done := make(chan error)
	go func() { done <- c.Upload(context.Background()) }()
	<-be.entered

	assert.True(t, c.State().Processing)
	assert.ErrorIs(t, c.Upload(context.Background()), utils.ErrBusy)

	close(be.gate)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, atomic.LoadInt32(&be.uploads))
}

func TestSecondScanWhileScanning(t *testing.T) {
	be := &fakeBackend{out: models.Ok{Label: "A+"}, gate: make(chan struct{}), entered: make(chan struct{})}
	c := NewController(be, "", nil)

	done := make(chan error)
	go func() { done <- c.Scan(context.Background()) }()
	<-be.entered

	assert.ErrorIs(t, c.Scan(context.Background()), utils.ErrBusy)
	close(be.gate)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, atomic.LoadInt32(&be.scans))
}
