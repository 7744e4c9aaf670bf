package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/gamereview/internal/codec/gzipcodec"
	"github.com/discochess/gamereview/internal/store"
)

// fakeS3 keeps objects in a map keyed by bucket/key.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	d, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(d))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	d, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = d
	return &s3.PutObjectOutput{}, nil
}

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c/", "a/b/c/"},
	}
	for _, tt := range tests {
		s := &Store{}
		WithPrefix(tt.input)(s)
		if s.prefix != tt.want {
			t.Errorf("WithPrefix(%q) prefix = %q, want %q", tt.input, s.prefix, tt.want)
		}
	}
}

func TestOptions(t *testing.T) {
	s := &Store{}
	WithRegion("eu-west-1")(s)
	WithEndpoint("http://localhost:9000")(s)
	if s.region != "eu-west-1" || s.endpoint != "http://localhost:9000" {
		t.Errorf("options = %q, %q", s.region, s.endpoint)
	}
}

func TestStore_WriteRead(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &Store{client: fake, bucket: "evals", prefix: "v2/", codec: gzipcodec.New()}
	ctx := context.Background()
	data := []byte(`{"fen":"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -","depth":18,"score":0.3}` + "\n")

	if err := s.WriteShard(ctx, 9, data); err != nil {
		t.Fatalf("WriteShard() error = %v", err)
	}
	if _, ok := fake.objects["evals/v2/shards/00009.gz"]; !ok {
		t.Fatalf("object keys = %v", fake.objects)
	}

	got, err := s.ReadShard(ctx, 9)
	if err != nil {
		t.Fatalf("ReadShard() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadShard() = %q, want %q", got, data)
	}
}

func TestStore_ReadShardNotFound(t *testing.T) {
	s := &Store{client: &fakeS3{objects: map[string][]byte{}}, bucket: "evals", codec: gzipcodec.New()}
	if _, err := s.ReadShard(context.Background(), 3); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ReadShard() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Close(t *testing.T) {
	if err := (&Store{}).Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
