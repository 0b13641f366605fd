package service

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/trill-go/pkg/errors"
	"github.com/theapemachine/trill-go/pkg/jsonrpc"
	"github.com/theapemachine/trill-go/pkg/memory"
	"github.com/theapemachine/trill-go/pkg/tools"
)

type nullIndex struct {
	queryErr error
}

func (nullIndex) Upsert(ctx context.Context, points []memory.Point) error { return nil }

func (n nullIndex) Query(
	ctx context.Context, vector []float32, filter map[string]string, topK int,
) ([]memory.Match, error) {
	return nil, n.queryErr
}

func serviceWithIndex(index memory.VectorIndex) *MemoryService {
	embedder := memory.NewMockEmbedder()
	writer := memory.NewWriter(embedder, index)
	retriever := memory.NewRetriever(embedder, index)
	toolset := tools.NewToolset(writer, retriever, memory.NewAssembler(retriever), nil)

	return New(Config{Name: "trill", Version: "0.1.0"}, toolset)
}

func serviceForTest() *MemoryService {
	return serviceWithIndex(nullIndex{})
}

func postRPC(ts *httptest.Server, payload string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/rpc", bytes.NewBufferString(payload))

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	return http.DefaultClient.Do(req)
}

func TestServiceHealth(t *testing.T) {
	Convey("Given a running memory service handler", t, func() {
		ts := httptest.NewServer(serviceForTest().Handler())
		defer ts.Close()

		Convey("When the health endpoint is queried", func() {
			resp, err := http.Get(ts.URL + "/health")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var body map[string]string
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)

			Convey("Then the service should report itself healthy", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "ok")
				So(body["name"], ShouldEqual, "trill")
				So(body["version"], ShouldEqual, "0.1.0")
				So(body["timestamp"], ShouldNotBeEmpty)
			})
		})

		Convey("When the root path is queried", func() {
			resp, err := http.Get(ts.URL + "/")
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then it should serve the health payload", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When an unknown path is queried", func() {
			resp, err := http.Get(ts.URL + "/nope")
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then it should 404", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServiceCORS(t *testing.T) {
	Convey("Given a running memory service handler", t, func() {
		ts := httptest.NewServer(serviceForTest().Handler())
		defer ts.Close()

		Convey("When a preflight request arrives", func() {
			req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/rpc", nil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then it should resolve without touching the transport", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
				So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				So(resp.Header.Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "POST")
			})
		})

		Convey("When a regular request arrives", func() {
			resp, err := http.Get(ts.URL + "/health")
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then the CORS origin should be set on the response", func() {
				So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			})
		})
	})
}

func TestServiceToolsList(t *testing.T) {
	Convey("Given a running memory service handler", t, func() {
		ts := httptest.NewServer(serviceForTest().Handler())
		defer ts.Close()

		Convey("When tools/list is posted to the endpoint", func() {
			resp, err := postRPC(ts, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)

			Convey("Then every memory tool should be advertised", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, `"search"`)
				So(string(body), ShouldContainSubstring, `"get_grounding_context"`)
				So(string(body), ShouldContainSubstring, `"ingest"`)
				So(string(body), ShouldContainSubstring, `"store"`)
				So(string(body), ShouldContainSubstring, `"stats"`)
			})
		})
	})
}

func TestServiceToolErrorCode(t *testing.T) {
	Convey("Given a service whose vector index is down", t, func() {
		svc := serviceWithIndex(nullIndex{queryErr: goerrors.New("index down")})
		ts := httptest.NewServer(svc.Handler())
		defer ts.Close()

		Convey("When a tool call fails", func() {
			resp, err := postRPC(ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search","arguments":{"query":"anything"}}}`)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var rpcResp jsonrpc.RPCResponse
			So(json.NewDecoder(resp.Body).Decode(&rpcResp), ShouldBeNil)

			Convey("Then the failure should carry the tool-execution code", func() {
				So(rpcResp.Error, ShouldNotBeNil)
				So(rpcResp.Error.Code, ShouldEqual, errors.ErrToolExecution.Code)
				So(rpcResp.Error.Message, ShouldContainSubstring, "search failed")
			})
		})

		Convey("When an unknown method is posted", func() {
			resp, err := postRPC(ts, `{"jsonrpc":"2.0","id":1,"method":"nope"}`)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var rpcResp jsonrpc.RPCResponse
			So(json.NewDecoder(resp.Body).Decode(&rpcResp), ShouldBeNil)

			Convey("Then the method-not-found code should pass through untouched", func() {
				So(rpcResp.Error, ShouldNotBeNil)
				So(rpcResp.Error.Code, ShouldEqual, errors.ErrMethodNotFound.Code)
			})
		})

		Convey("When a tool call succeeds", func() {
			resp, err := postRPC(ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"stats","arguments":{}}}`)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)

			Convey("Then the result should not be rewritten", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, "vector_count")
				So(string(body), ShouldNotContainSubstring, `"error"`)
			})
		})
	})
}
