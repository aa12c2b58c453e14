package cascade

import (
	"context"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/face-register/internal/imageprocessor"
)

func cascadePath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("CASCADE_PATH")
	if path == "" {
		t.Skip("CASCADE_PATH not set")
	}
	return path
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.xml")
	require.Error(t, err)
}

func TestBlankImageHasNoFaces(t *testing.T) {
	c, err := Load(cascadePath(t))
	require.NoError(t, err)
	defer c.Close()

	gray := image.NewGray(image.Rect(0, 0, 320, 240))
	for i := range gray.Pix {
		gray.Pix[i] = 200
	}

	regions, err := c.Detect(context.Background(), gray, imageprocessor.DefaultDetectParams())
	require.NoError(t, err)
	require.Empty(t, regions)
}

func TestPoolLoadsEveryInstance(t *testing.T) {
	pool, err := NewPool(cascadePath(t), 2)
	require.NoError(t, err)
	require.Equal(t, 2, pool.Size())
	require.NoError(t, pool.Close())
}
