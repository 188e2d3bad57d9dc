package gqlrequest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// MaxBodyBytes caps how much of a POST body is buffered for analysis. Larger
// bodies are left for the GraphQL handler to reject.
const MaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a POST body exceeds MaxBodyBytes.
var ErrBodyTooLarge = fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)

// Envelope is the GraphQL payload of a request, decoded the same way the
// graphql-go handler decodes it: GET query parameters, application/graphql,
// form posts and JSON bodies.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  json.RawMessage

	DocumentSizeBytes int
}

// DecodeEnvelope extracts the payload and rewinds the body so the GraphQL
// handler can read it again.
func DecodeEnvelope(r *http.Request) (env Envelope, err error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env = Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}
	defer func() { env.DocumentSizeBytes = len(env.Query) }()

	if r.Method == http.MethodGet {
		env.fromValues(r.URL.Query())
		return env, nil
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return env, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return env, err
	}
	// Put back what was read in front of anything left unread.
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
	if len(body) > MaxBodyBytes {
		return env, ErrBodyTooLarge
	}

	switch mediaType(env.ContentType) {
	case "application/graphql":
		env.Query = string(body)
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return env, err
		}
		env.fromValues(values)
	default:
		if err := env.fromJSON(body); err != nil {
			return env, err
		}
	}
	return env, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "" {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func (env *Envelope) fromValues(values url.Values) {
	env.Query = values.Get("query")
	env.OperationName = values.Get("operationName")
	if raw := strings.TrimSpace(values.Get("variables")); raw != "" && raw != "null" && json.Valid([]byte(raw)) {
		env.VariablesRaw = json.RawMessage(raw)
	}
}

func (env *Envelope) fromJSON(body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.VariablesRaw = append(json.RawMessage(nil), vars...)
	}
	return nil
}
