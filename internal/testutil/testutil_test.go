package testutil

import (
	"bytes"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.True(t, FileExists(root+"/go.mod"))
}

func TestPNGBytes(t *testing.T) {
	data := PNGBytes(t, 16, 8)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestProviderStub_RecordsRequest(t *testing.T) {
	stub := NewProviderStub(t)
	stub.RespondWithCodes(Found("QR_CODE", "hello"))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(imageField, "a.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("img"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, stub.URL()+scanPath, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(keyHeader, "secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, stub.Hits())

	last, ok := stub.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "secret", last.APIKey)
	assert.Equal(t, "a.png", last.Filename)
	assert.Equal(t, []byte("img"), last.Image)
}

func TestProviderStub_UnknownPath(t *testing.T) {
	stub := NewProviderStub(t)

	resp, err := http.Post(stub.URL()+"/other", "text/plain", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, stub.Hits())
}
