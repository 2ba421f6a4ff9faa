package jobs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds provider responses; audio payloads are the largest.
const maxResponseBytes = 64 << 20

// Clock is the time source of the poller. Sleep must return early with the
// context error when ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do performs call and reads the whole response body. Transport and read
// failures are transient.
func do(ctx context.Context, client *http.Client, call Call) (Response, error) {
	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return Response{}, &Error{Kind: KindFatal, Message: "build request", Err: err}
	}
	for key, values := range call.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, &Error{Kind: KindTransient, Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, &Error{Kind: KindTransient, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}
