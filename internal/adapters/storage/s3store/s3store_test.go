package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestSavePutsObject(t *testing.T) {
	fp := &fakePutter{}
	s := newWithClient(fp, "catalogue", "http://localhost:4566/catalogue/")

	url, err := s.Save(context.Background(), "/products/p1/main.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566/catalogue/products/p1/main.png", url)
	assert.Equal(t, "catalogue", aws.ToString(fp.in.Bucket))
	assert.Equal(t, "products/p1/main.png", aws.ToString(fp.in.Key))
	assert.Equal(t, "image/png", aws.ToString(fp.in.ContentType))
	assert.EqualValues(t, 3, aws.ToInt64(fp.in.ContentLength))
	assert.Equal(t, "png", fp.body)
}

func TestSavePropagatesErrors(t *testing.T) {
	s := newWithClient(&fakePutter{err: errors.New("denied")}, "b", "http://x")
	_, err := s.Save(context.Background(), "k", strings.NewReader(""), "")
	assert.ErrorContains(t, err, "denied")

	_, err = s.Save(context.Background(), "/", strings.NewReader(""), "")
	assert.Error(t, err)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}
