package publish

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

func TestRedisMirrorStoresBody(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	m, err := NewRedisMirror(ctx, RedisOptions{Addr: mr.Addr(), KeyPrefix: "quant:", TTL: time.Minute})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(ctx, "quantdatav2_bybit.json", "application/json", []byte(`[]`)))

	got, err := mr.Get("quant:quantdatav2_bybit.json")
	require.NoError(t, err)
	require.Equal(t, "[]", got)
	require.Equal(t, time.Minute, mr.TTL("quant:quantdatav2_bybit.json"))
}

func TestRedisMirrorUnreachable(t *testing.T) {
	_, err := NewRedisMirror(context.Background(), RedisOptions{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3MirrorKeyLayout(t *testing.T) {
	api := &fakeS3{}
	m := NewS3MirrorWithClient(api, S3Options{Bucket: "quant", Prefix: "/snapshots/"})

	require.NoError(t, m.Put(context.Background(), "whattotrade_binance.json", "application/json", []byte(`[1]`)))
	require.Equal(t, "quant", api.bucket)
	require.Equal(t, "snapshots/whattotrade_binance.json", api.key)
	require.Equal(t, "application/json", api.contentType)
	require.Equal(t, `[1]`, string(api.body))
}
