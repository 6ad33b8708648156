package detection

import (
	"encoding/base64"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestFrameRequest(t *testing.T) {
	req, err := frameRequest("yolov8n", 640, 360, []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	fields := req.GetFields()
	assert.Equal(t, "yolov8n", fields["model"].GetStringValue())
	assert.Equal(t, 640.0, fields["width"].GetNumberValue())
	assert.Equal(t, 360.0, fields["height"].GetNumberValue())

	raw, err := base64.StdEncoding.DecodeString(fields["image"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, raw)
}

func TestDetectionsFromStruct(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"detections": []interface{}{
			map[string]interface{}{"class_id": 2, "score": 0.75, "bbox": []interface{}{1, 2, 30, 40}},
			map[string]interface{}{"class_id": 0, "score": 0.5, "bbox": []interface{}{5, 5, 6, 6}},
		},
	})
	require.NoError(t, err)

	dets, err := detectionsFromStruct(resp)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, 2, dets[0].ClassID)
	assert.InDelta(t, 0.75, dets[0].Score, 1e-6)
	assert.Equal(t, image.Rect(1, 2, 30, 40), dets[0].Box)
	assert.Equal(t, 0, dets[1].ClassID)
}

func TestDetectionsFromStructEmpty(t *testing.T) {
	dets, err := detectionsFromStruct(&structpb.Struct{})
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestDetectionsFromStructBadBBox(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"detections": []interface{}{
			map[string]interface{}{"class_id": 2, "score": 0.75, "bbox": []interface{}{1, 2}},
		},
	})
	require.NoError(t, err)

	_, err = detectionsFromStruct(resp)
	assert.Error(t, err)
}

func TestParseGRPCEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantTLS  bool
	}{
		{"localhost:50051", "localhost:50051", false},
		{"ai.example.com", "ai.example.com:443", true},
		{"ai.example.com:8443", "ai.example.com:8443", true},
		{"http://10.0.0.5", "10.0.0.5:80", false},
		{"https://ai.example.com:9000", "ai.example.com:9000", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, creds, err := parseGRPCEndpoint(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantTLS, creds.Info().SecurityProtocol == "tls")
		})
	}
}

func TestParseGRPCEndpointUnsupportedScheme(t *testing.T) {
	_, _, err := parseGRPCEndpoint("ftp://host:21")
	assert.Error(t, err)
}

func TestRetryPolicyDelay(t *testing.T) {
	r := retryPolicy{maxRetries: 3, min: 100 * time.Millisecond, max: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, r.delay(0))
	assert.Equal(t, 200*time.Millisecond, r.delay(1))
	assert.Equal(t, 400*time.Millisecond, r.delay(2))
	assert.Equal(t, 500*time.Millisecond, r.delay(3), "clamped to max")
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	r := retryPolicy{min: time.Second, max: time.Second, jitterPct: 20}
	for i := 0; i < 50; i++ {
		d := r.delay(0)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
