package test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amzTargetHeader = "X-Amz-Target"

// AWSJSONResponder builds the response model for one decoded request body. The model is marshalled to JSON,
// so it should use the wire names, e.g. map[string]any{"taskArn": ...}.
type AWSJSONResponder func(request map[string]any) any

// AWSErrorResponse makes the fixture answer with an AWS JSON protocol error.
type AWSErrorResponse struct {
	Status  int
	Type    string
	Message string
}

// AWSJSONFixture is a test server for AWS services speaking the JSON protocol (ECS, CloudWatch Logs).
// Requests are routed by the operation named in their X-Amz-Target header and recorded for later assertions.
type AWSJSONFixture struct {
	Server   *httptest.Server
	TestingT require.TestingT

	mu         sync.Mutex
	responders map[string]AWSJSONResponder
	requests   map[string][]map[string]any
}

func NewAWSJSONFixture(t require.TestingT) *AWSJSONFixture {
	f := &AWSJSONFixture{
		TestingT:   t,
		responders: map[string]AWSJSONResponder{},
		requests:   map[string][]map[string]any{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	return f
}

func (f *AWSJSONFixture) Teardown() {
	f.Server.Close()
}

// Handle sets the responder for operation, e.g. "RunTask" or "GetLogEvents".
func (f *AWSJSONFixture) Handle(operation string, responder AWSJSONResponder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[operation] = responder
}

// HandleModel answers every request for operation with model.
func (f *AWSJSONFixture) HandleModel(operation string, model any) {
	f.Handle(operation, func(map[string]any) any { return model })
}

// Requests returns the decoded bodies of the requests received for operation, in order.
func (f *AWSJSONFixture) Requests(operation string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.requests[operation]...)
}

func (f *AWSJSONFixture) serveHTTP(writer http.ResponseWriter, request *http.Request) {
	target := request.Header.Get(amzTargetHeader)
	operation := target[strings.LastIndex(target, ".")+1:]

	body, err := io.ReadAll(request.Body)
	require.NoError(f.TestingT, err)
	decoded := map[string]any{}
	if len(body) > 0 {
		require.NoError(f.TestingT, json.Unmarshal(body, &decoded))
	}

	f.mu.Lock()
	f.requests[operation] = append(f.requests[operation], decoded)
	responder, ok := f.responders[operation]
	f.mu.Unlock()

	writer.Header().Set("Content-Type", "application/x-amz-json-1.1")
	if !ok {
		assert.Fail(f.TestingT, "unhandled request; if this is an expected request, add a responder to this fixture",
			"target: %s, body: %s", target, body)
		f.writeError(writer, AWSErrorResponse{Status: http.StatusBadRequest, Type: "UnknownOperationException", Message: target})
		return
	}
	model := responder(decoded)
	if errResponse, isError := model.(AWSErrorResponse); isError {
		f.writeError(writer, errResponse)
		return
	}
	f.writeModel(writer, model)
}

func (f *AWSJSONFixture) writeError(writer http.ResponseWriter, errResponse AWSErrorResponse) {
	status := errResponse.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	writer.WriteHeader(status)
	_, err := fmt.Fprintf(writer, `{"__type":%q,"message":%q}`, errResponse.Type, errResponse.Message)
	require.NoError(f.TestingT, err)
}

func (f *AWSJSONFixture) writeModel(writer http.ResponseWriter, model any) {
	respBody, err := json.Marshal(model)
	require.NoError(f.TestingT, err)
	written, err := writer.Write(respBody)
	require.NoError(f.TestingT, err)
	require.Equal(f.TestingT, len(respBody), written)
}
