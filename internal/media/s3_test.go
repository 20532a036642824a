package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
)

type fakeUploader struct {
	keys []string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	_, _ = io.Copy(io.Discard, input.Body)
	f.keys = append(f.keys, *input.Key)
	return &manager.UploadOutput{}, nil
}

type memRecorder struct {
	records []Record
}

func (m *memRecorder) Record(_ context.Context, rec Record) error {
	m.records = append(m.records, rec)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoreImageUploadsThumbnail(t *testing.T) {
	logger, _ := test.NewNullLogger()
	up := &fakeUploader{}
	rec := &memRecorder{}
	store := NewS3Store(up, S3Config{Bucket: "media", Region: "eu-west-1", PublicBaseURL: "https://cdn.example.com/"}, rec, logger)

	data := pngBytes(t, 640, 10)
	stored, err := store.Store(context.Background(), Object{
		OwnerID: "u1", ChatID: "c1", Filename: "../holiday pic.png",
		ContentType: "image/png", Size: int64(len(data)), Body: bytes.NewReader(data),
	})
	require.NoError(t, err)

	assert.Equal(t, models.MessageImage, stored.Type)
	assert.True(t, strings.HasPrefix(stored.Key, "c1/"))
	assert.True(t, strings.HasSuffix(stored.Key, "_holiday_pic.png"))
	assert.Equal(t, "https://cdn.example.com/"+stored.Key, stored.URL)
	assert.Equal(t, stored.URL+"_thumb.jpg", stored.ThumbnailURL)
	assert.Equal(t, []string{stored.Key, stored.Key + "_thumb.jpg"}, up.keys)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "image", rec.records[0].Type)
	assert.Equal(t, int64(len(data)), rec.records[0].Size)
}

func TestStoreFileSkipsThumbnail(t *testing.T) {
	logger, _ := test.NewNullLogger()
	up := &fakeUploader{}
	store := NewS3Store(up, S3Config{Bucket: "media", Region: "us-east-1"}, nil, logger)

	stored, err := store.Store(context.Background(), Object{
		ChatID: "c1", Filename: "report.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageFile, stored.Type)
	assert.Empty(t, stored.ThumbnailURL)
	assert.True(t, strings.HasPrefix(stored.URL, "https://media.s3.us-east-1.amazonaws.com/c1/"))
	assert.Len(t, up.keys, 1)
}

func TestStoreWrapsUploadFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := NewS3Store(&fakeUploader{err: errors.New("timeout")}, S3Config{Bucket: "b"}, nil, logger)

	_, err := store.Store(context.Background(), Object{ChatID: "c1", Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)
}

func TestTypeFor(t *testing.T) {
	assert.Equal(t, models.MessageImage, TypeFor("image/jpeg"))
	assert.Equal(t, models.MessageVideo, TypeFor("video/webm"))
	assert.Equal(t, models.MessageFile, TypeFor("application/zip"))
	assert.Equal(t, models.MessageFile, TypeFor(""))
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	out, err := Thumbnail(pngBytes(t, 100, 50))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestThumbnailRejectsNonImage(t *testing.T) {
	_, err := Thumbnail([]byte("not an image"))
	assert.Error(t, err)
}
