package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	raidohttp "github.com/aukilabs/raido/http"
	"github.com/aukilabs/raido/messages"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const defaultTimeout = time.Second * 10

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Results is the outcome of a smoke test run.
type Results struct {
	Endpoint        string  `json:"endpoint"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Status          Status  `json:"status"`
	Error           string  `json:"error,omitempty"`
}

// Request triggers a smoke test against the given endpoint. An empty
// endpoint tests the server itself.
type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

type RunOptions struct {
	Endpoint string
	Timeout  time.Duration
}

// Run dials the endpoint and exercises the realtime surface end to end: it
// joins a world, registers an entity, queries it back and deletes it.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		Endpoint: opts.Endpoint,
		Status:   StatusFailed,
	}

	fail := func(err error) (Results, error) {
		res.Error = err.Error()
		return res, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoint := strings.ReplaceAll(opts.Endpoint, "https://", "wss://")
	endpoint = strings.ReplaceAll(endpoint, "http://", "ws://")

	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return fail(errors.New("initializing web socket failed").Wrap(err))
	}
	config.Header.Set(raidohttp.HeaderClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return fail(errors.New("dialing web socket failed").
			WithTag("endpoint", endpoint).
			Wrap(err))
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fail(err)
	}

	start := time.Now()

	if err := send(conn, messages.TypeWorldJoinRequest, messages.WorldJoinRequest{
		RequestID: 1,
	}); err != nil {
		return fail(err)
	}

	var join messages.WorldJoinResponse
	if err := waitFor(conn, messages.TypeWorldJoinResponse, &join); err != nil {
		return fail(errors.New("joining a world failed").Wrap(err))
	}
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000

	if err := send(conn, messages.TypeEntityAddRequest, messages.EntityAddRequest{
		RequestID: 2,
		X:         1,
		Y:         1,
		W:         1,
		H:         1,
		Layer:     1,
		Mask:      1,
	}); err != nil {
		return fail(err)
	}

	var add messages.EntityAddResponse
	if err := waitFor(conn, messages.TypeEntityAddResponse, &add); err != nil {
		return fail(errors.New("registering an entity failed").Wrap(err))
	}

	// Fire and forget. The queried region below covers both poses, so the
	// result does not depend on when the index step picks the move up.
	if err := send(conn, messages.TypeEntityUpdatePose, messages.EntityUpdatePose{
		EntityID: add.EntityID,
		Pose:     messages.Pose{X: 2, Y: 2},
	}); err != nil {
		return fail(err)
	}

	if err := send(conn, messages.TypeQueryRegionRequest, messages.QueryRegionRequest{
		RequestID: 3,
		X:         0,
		Y:         0,
		W:         4,
		H:         4,
	}); err != nil {
		return fail(err)
	}

	var query messages.QueryResponse
	if err := waitFor(conn, messages.TypeQueryResponse, &query); err != nil {
		return fail(errors.New("querying the region failed").Wrap(err))
	}

	var found bool
	for _, id := range query.EntityIDs {
		if id == add.EntityID {
			found = true
		}
	}
	if !found {
		return fail(errors.New("the query missed the registered entity").
			WithTag("entity_id", add.EntityID))
	}

	if err := send(conn, messages.TypeDebugInfoRequest, messages.DebugInfoRequest{
		RequestID: 4,
	}); err != nil {
		return fail(err)
	}

	var debug messages.DebugInfoResponse
	if err := waitFor(conn, messages.TypeDebugInfoResponse, &debug); err != nil {
		return fail(errors.New("fetching debug info failed").Wrap(err))
	}
	if debug.Targets < 1 {
		return fail(errors.New("debug info reported an empty index").
			WithTag("world_id", debug.WorldID))
	}

	if err := send(conn, messages.TypeEntityDeleteRequest, messages.EntityDeleteRequest{
		RequestID: 5,
		EntityID:  add.EntityID,
	}); err != nil {
		return fail(err)
	}

	var del messages.EntityDeleteResponse
	if err := waitFor(conn, messages.TypeEntityDeleteResponse, &del); err != nil {
		return fail(errors.New("deleting the entity failed").Wrap(err))
	}

	res.Status = StatusSuccess
	return res, nil
}

func send(conn *websocket.Conn, msgType string, v any) error {
	msg, err := messages.New(msgType, v)
	if err != nil {
		return err
	}
	_, err = messages.Send(conn, msg)
	return err
}

func waitFor(conn *websocket.Conn, msgType string, v any) error {
	for {
		msg, _, err := messages.Receive(conn)
		if err != nil {
			return err
		}

		switch msg.Type {
		case msgType:
			return msg.DataTo(v)

		case messages.TypeError:
			var errRes messages.ErrorResponse
			msg.DataTo(&errRes)
			return errors.New("server returned an error").
				WithTag("code", errRes.Code)
		}
	}
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

type Options struct {
	// The endpoint tested when a request does not name one.
	Endpoint string

	// Called with the test outcome.
	SendResult func(context.Context, Results) error
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body failed", http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		endpoint := req.Endpoint
		if endpoint == "" {
			endpoint = opts.Endpoint
		}

		go func() {
			defer func() {
				// if context is of testContext
				// cancel context on exit to signal function exited
				// this is used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, RunOptions{
				Endpoint: endpoint,
				Timeout:  req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}
