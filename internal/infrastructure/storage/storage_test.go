package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUploadMultipleCleansUpOnFailure(t *testing.T) {
	s := new(MockStorage)
	first := File{Name: "a.jpg", Reader: strings.NewReader("a")}
	second := File{Name: "b.jpg", Reader: strings.NewReader("b")}

	s.On("Upload", mock.Anything, first).Return(UploadedFile{URL: "https://cdn/a.jpg", Name: "a.jpg"}, nil)
	s.On("Upload", mock.Anything, second).Return(UploadedFile{}, errors.New("disk full"))
	s.On("Delete", mock.Anything, "https://cdn/a.jpg").Return(nil)

	out, err := UploadMultiple(context.Background(), s, []File{first, second})

	assert.Error(t, err)
	assert.Nil(t, out)
	s.AssertExpectations(t)
}

func TestUploadMultipleReturnsAll(t *testing.T) {
	s := new(MockStorage)
	s.On("Upload", mock.Anything, mock.Anything).Return(UploadedFile{URL: "https://cdn/x.jpg"}, nil).Twice()

	out, err := UploadMultiple(context.Background(), s, []File{
		{Name: "x.jpg", Reader: strings.NewReader("x")},
		{Name: "y.jpg", Reader: strings.NewReader("y")},
	})

	require.NoError(t, err)
	assert.Len(t, out, 2)
	s.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestObjectKeyKeepsExtension(t *testing.T) {
	key := objectKey("gate/", "Photo.JPG")
	assert.True(t, strings.HasPrefix(key, "gate/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, objectKey("gate/", "Photo.JPG"))
}

func TestFTPDeleteRejectsForeignURL(t *testing.T) {
	s := NewFTPStorage("localhost", "21", "", "", "uploads", "https://cdn.example.com")
	err := s.Delete(context.Background(), "https://elsewhere.example.com/uploads/a.jpg")
	assert.Error(t, err)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/uploads/a.jpg", joinURL("https://cdn.example.com/", "uploads/a.jpg"))
}
