package detection

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
)

// RemoteDetector sends JPEG-encoded frames to an inference server over gRPC.
//
// The request is a google.protobuf.Struct:
//
//	{"model": "yolov8n", "width": 1280, "height": 720, "image": "<base64 jpeg>"}
//
// and the response a Struct with a "detections" list of
//
//	{"class_id": 2, "score": 0.87, "bbox": [x1, y1, x2, y2]}
type RemoteDetector struct {
	model   string
	method  string
	timeout time.Duration
	quality int
	retry   retryPolicy

	conn     *grpc.ClientConn
	endpoint string
}

func NewRemoteDetector(cfg *config.Config, model string) (*RemoteDetector, error) {
	endpoint, creds, err := parseGRPCEndpoint(cfg.AIGRPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AI endpoint %s: %w", cfg.AIGRPCURL, err)
	}

	log.Info().
		Str("original_endpoint", cfg.AIGRPCURL).
		Str("normalized_endpoint", endpoint).
		Bool("use_tls", creds.Info().SecurityProtocol == "tls").
		Str("model", model).
		Msg("Connecting to AI gRPC service")

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AI service at %s: %w", endpoint, err)
	}

	retry := retryPolicy{
		maxRetries: cfg.AIMaxRetries,
		min:        cfg.AIRetryBackoffMin,
		max:        cfg.AIRetryBackoffMax,
		jitterPct:  cfg.AIRetryJitterPct,
	}

	d := &RemoteDetector{
		model:    model,
		method:   cfg.AIGRPCMethod,
		timeout:  cfg.AITimeout,
		quality:  cfg.JPEGQuality,
		retry:    retry,
		conn:     conn,
		endpoint: endpoint,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AITimeout)
	defer cancel()
	if err := d.HealthCheck(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("detection service health check failed: %w", err)
	}

	log.Info().Str("ai_endpoint", endpoint).Msg("AI service health check passed")
	return d, nil
}

func (d *RemoteDetector) Name() string { return d.model }

// HealthCheck runs the standard gRPC health check against the server.
func (d *RemoteDetector) HealthCheck(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(d.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service status %s", resp.GetStatus())
	}
	return nil
}

func (d *RemoteDetector) Infer(frame gocv.Mat) ([]models.Detection, error) {
	if frame.Empty() {
		return nil, models.ErrEmptyFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, d.quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame as JPEG: %w", err)
	}
	jpegData := buf.GetBytes()
	req, err := frameRequest(d.model, frame.Cols(), frame.Rows(), jpegData)
	buf.Close()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= d.retry.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.retry.delay(attempt - 1)
			log.Warn().
				Err(lastErr).
				Str("model", d.model).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying inference request")
			time.Sleep(delay)
		}

		resp, err := d.invoke(req)
		if err == nil {
			return detectionsFromStruct(resp)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("inference failed after %d attempts: %w", d.retry.maxRetries+1, lastErr)
}

func (d *RemoteDetector) invoke(req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := d.conn.Invoke(ctx, d.method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *RemoteDetector) Render(frame gocv.Mat, dets []models.Detection) gocv.Mat {
	return Annotate(frame, dets)
}

func (d *RemoteDetector) Close() error {
	log.Info().Str("ai_endpoint", d.endpoint).Msg("AI gRPC connection closed")
	return d.conn.Close()
}

type retryPolicy struct {
	maxRetries int
	min        time.Duration
	max        time.Duration
	jitterPct  int
}

// delay is a jittered exponential backoff clamped to [min, max] before
// jitter is applied.
func (r retryPolicy) delay(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * r.min
	if base < r.min {
		base = r.min
	}
	if r.max > 0 && base > r.max {
		base = r.max
	}

	jitterPct := float64(r.jitterPct) / 100.0
	jitter := time.Duration(float64(base) * jitterPct * (rand.Float64()*2 - 1))
	return base + jitter
}

func frameRequest(model string, width, height int, jpegData []byte) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"model":  model,
		"width":  width,
		"height": height,
		"image":  base64.StdEncoding.EncodeToString(jpegData),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	return req, nil
}

// detectionsFromStruct converts an inference response. A missing or empty
// "detections" list yields no detections.
func detectionsFromStruct(resp *structpb.Struct) ([]models.Detection, error) {
	list := resp.GetFields()["detections"].GetListValue()
	if list == nil {
		return nil, nil
	}

	dets := make([]models.Detection, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("detection %d: not an object", i)
		}

		bbox := fields["bbox"].GetListValue().GetValues()
		if len(bbox) != 4 {
			return nil, fmt.Errorf("detection %d: bbox must have 4 values, got %d", i, len(bbox))
		}

		dets = append(dets, models.Detection{
			ClassID: int(fields["class_id"].GetNumberValue()),
			Score:   float32(fields["score"].GetNumberValue()),
			Box: image.Rect(
				int(bbox[0].GetNumberValue()),
				int(bbox[1].GetNumberValue()),
				int(bbox[2].GetNumberValue()),
				int(bbox[3].GetNumberValue()),
			),
		})
	}
	return dets, nil
}

// parseGRPCEndpoint normalizes the endpoint and picks TLS for https or
// well-known TLS ports, plaintext otherwise.
func parseGRPCEndpoint(endpoint string) (string, credentials.TransportCredentials, error) {
	// Add scheme if missing
	if !strings.Contains(endpoint, "://") {
		if strings.Contains(endpoint, ".") && !strings.Contains(endpoint, ":") {
			endpoint = "https://" + endpoint + ":443"
		} else if strings.Contains(endpoint, ":") {
			parts := strings.Split(endpoint, ":")
			if len(parts) == 2 {
				if port, err := strconv.Atoi(parts[1]); err == nil {
					if port == 443 || port == 8443 || port == 9443 {
						endpoint = "https://" + endpoint
					} else {
						endpoint = "http://" + endpoint
					}
				} else {
					endpoint = "http://" + endpoint
				}
			}
		} else {
			endpoint = "https://" + endpoint + ":443"
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	// Ensure port is set
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = u.Hostname() + ":443"
		case "http":
			host = u.Hostname() + ":80"
		default:
			return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
		}
	}

	var creds credentials.TransportCredentials
	switch u.Scheme {
	case "https":
		creds = credentials.NewTLS(&tls.Config{ServerName: u.Hostname()})
	case "http":
		creds = insecure.NewCredentials()
	default:
		return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	return host, creds, nil
}
